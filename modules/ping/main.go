// Package main implements the ping module for convoy. It is the
// smallest useful module: it echoes a data value back to the engine and
// doubles as a conformance probe for the invocation channel, since it
// can simulate failures and slow executions on demand.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/convoyops/convoy/pkg/modexec"
)

// ModuleConfig holds the arguments the module accepts.
type ModuleConfig struct {
	// Data is echoed back in the result. The value "crash" simulates a
	// module failure.
	Data string `json:"data,omitempty"`

	// SleepSeconds delays the response, to exercise invocation timeouts.
	SleepSeconds float64 `json:"sleep_seconds,omitempty"`
}

// Response is the single JSON object the module writes to stdout.
type Response struct {
	Changed bool   `json:"changed"`
	Failed  bool   `json:"failed,omitempty"`
	Msg     string `json:"msg,omitempty"`
	Ping    string `json:"ping,omitempty"`
}

func main() {
	os.Exit(run())
}

func run() int {
	config, err := parseConfig(os.Getenv(modexec.DefaultArgsVar))
	if err != nil {
		emit(&Response{Failed: true, Msg: err.Error()})
		return 1
	}

	resp := execute(config)
	emit(resp)

	if resp.Failed {
		return 1
	}
	return 0
}

// parseConfig decodes the module arguments from the environment payload.
// A malformed payload degrades to an empty mapping per the channel
// contract; the decode error is diagnostic only.
func parseConfig(payload string) (*ModuleConfig, error) {
	args, _ := modexec.DecodeArgs(payload)

	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode module arguments: %w", err)
	}

	config := &ModuleConfig{}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("invalid module arguments: %w", err)
	}
	return config, nil
}

// execute produces the module result for the given configuration.
func execute(config *ModuleConfig) *Response {
	if config.SleepSeconds > 0 {
		time.Sleep(time.Duration(config.SleepSeconds * float64(time.Second)))
	}

	if config.Data == "crash" {
		return &Response{Failed: true, Msg: "boom"}
	}

	data := config.Data
	if data == "" {
		data = "pong"
	}

	return &Response{Ping: data}
}

// emit writes the result as one JSON line on stdout.
func emit(resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal response: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
