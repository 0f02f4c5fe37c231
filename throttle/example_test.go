/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package throttle

import (
	"fmt"
	"log"
	"time"

	"github.com/acronis/go-eventkit/event"
)

func Example() {
	// Allow 2 events per minute per tenant, suppress the rest.
	processor, err := New(&Config{
		KeyField: "tenant_id",
		Rate:     RateValue{Count: 2, Duration: time.Minute},
	})
	if err != nil {
		log.Fatal(err)
	}

	for i := 0; i < 4; i++ {
		ev := event.Event{"tenant_id": "tenant-1", "msg": fmt.Sprintf("backup finished #%d", i)}
		if processed := processor.Process(ev); processed != nil {
			fmt.Printf("passed: %s\n", processed["msg"])
		} else {
			fmt.Println("suppressed")
		}
	}

	// Output:
	// passed: backup finished #0
	// passed: backup finished #1
	// suppressed
	// suppressed
}
