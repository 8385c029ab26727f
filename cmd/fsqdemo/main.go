// Command fsqdemo wires an Engine over a working directory given on the
// command line and pushes a handful of demo messages through it, printing
// each finalized file as the processor consumes it. It exists to exercise
// fsq.New end to end, not as a supported operational surface.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/995933447/fsq/fsq"
	"github.com/995933447/fsq/internal/fsqcfg"
	"github.com/995933447/fsq/internal/logging"
)

func main() {
	dir := flag.String("dir", "./fsqdemo-data", "working directory for the queue")
	cfgPath := flag.String("cfg", "", "optional confloader JSON file for tuning knobs")
	flag.Parse()

	cfg := fsq.Config{
		WorkingDirectory: *dir,
		Processor: fsq.ProcessorFunc(func(info fsq.FileInfo, now fsq.Timestamp) fsq.FileProcessingResult {
			fmt.Printf("processing %s (%d bytes)\n", info.Name, info.Size)
			return fsq.Success
		}),
	}

	if *cfgPath != "" {
		if err := fsqcfg.Init(*cfgPath, 10*time.Second); err != nil {
			panic(err)
		}
		if err := fsqcfg.Current().ApplyTo(&cfg); err != nil {
			panic(err)
		}
	}

	engine, err := fsq.New(cfg)
	if err != nil {
		panic(err)
	}

	for i := 0; i < 5; i++ {
		msg := []byte(fmt.Sprintf("demo message %d", i))
		if err := engine.PushMessage(msg); err != nil {
			logging.Logger.Error(nil, err)
		}
	}

	if err := engine.ForceProcessing(); err != nil {
		logging.Logger.Error(nil, err)
	}

	time.Sleep(200 * time.Millisecond)

	if err := engine.Shutdown(); err != nil {
		panic(err)
	}
}
