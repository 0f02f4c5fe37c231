/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"log"
	"time"

	"github.com/acronis/go-eventkit/config"
)

/*
The example below has no "// Output:" comment on purpose, so it is only compiled.
To see the produced log file, add one and run:

	$ go test ./log -v -run Example
*/

func Example() {
	cfgData := bytes.NewBuffer([]byte(`
log:
  level: info
  format: json
  output: file
  addCaller: true
  file:
    path: event-pipeline-{{starttime}}-{{pid}}.log
    rotation:
      maxSize: 256M
      maxBackups: 10
      maxAgeDays: 30
      compress: true
`))

	cfg := Config{}
	// Use LoadFromFile() to read the configuration from a file instead.
	if err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(cfgData, config.DataTypeYAML, &cfg); err != nil {
		log.Fatal(err)
	}

	logger, closer := NewLogger(&cfg)
	defer closer()

	logger = logger.With(String("queue", "audit"))
	logger.Info("batch delivered", Int("batchSize", 128), DurationIn(time.Second, time.Millisecond))
}
