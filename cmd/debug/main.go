package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/poolhouse/poolhouse-controller/internal/nvram"
	"github.com/poolhouse/poolhouse-controller/internal/sensor"
	"github.com/poolhouse/poolhouse-controller/internal/settings"
)

// Operator CLI for poking the controller's storage and sensors while
// the service is stopped.
func main() {
	var nvramPath, command, bus string
	var loop int
	var value float64
	flag.StringVar(&nvramPath, "nvram", "data/nvram.db", "Path to the nvram file")
	flag.StringVar(&command, "cmd", "", "Command to run: dump-settings, erase-settings, set-target, read-sensor")
	flag.IntVar(&loop, "loop", 0, "Loop index for set-target (0=pool, 1=sauna)")
	flag.Float64Var(&value, "value", 0, "Value for set-target")
	flag.StringVar(&bus, "bus", "", "One-wire bus id for read-sensor, e.g. 28-0316a2798bff")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		flag.Usage()
		os.Exit(0)
	}

	var err error
	switch command {
	case "dump-settings":
		err = dumpSettings(nvramPath)
	case "erase-settings":
		err = eraseSettings(nvramPath)
	case "set-target":
		err = setTarget(nvramPath, loop, value)
	case "read-sensor":
		err = readSensor(bus)
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
}

func openStore(path string) (*settings.Store, *nvram.Store, error) {
	nv, err := nvram.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return settings.NewStore(nv), nv, nil
}

func dumpSettings(path string) error {
	store, nv, err := openStore(path)
	if err != nil {
		return err
	}
	defer nv.Close()

	rec, err := store.Load()
	if errors.Is(err, settings.ErrNotFound) {
		fmt.Println("No valid settings record stored")
		return nil
	}
	if err != nil {
		return err
	}
	for i, l := range rec.Loops {
		fmt.Printf("loop %d: target=%.2f calibration=%.2f resume=%s\n", i, l.Target, l.Calibration, l.Resume)
	}
	return nil
}

func eraseSettings(path string) error {
	store, nv, err := openStore(path)
	if err != nil {
		return err
	}
	defer nv.Close()
	if err := store.Erase(); err != nil {
		return err
	}
	fmt.Println("Settings record erased")
	return nil
}

func setTarget(path string, loop int, value float64) error {
	if loop < 0 || loop >= settings.NumLoops {
		return fmt.Errorf("loop index must be 0..%d", settings.NumLoops-1)
	}
	store, nv, err := openStore(path)
	if err != nil {
		return err
	}
	defer nv.Close()

	rec, err := store.Load()
	if errors.Is(err, settings.ErrNotFound) {
		rec = settings.Defaults()
	} else if err != nil {
		return err
	}
	rec.Loops[loop].Target = value
	if err := store.Save(rec); err != nil {
		return err
	}
	fmt.Printf("loop %d target set to %.2f\n", loop, value)
	return nil
}

func readSensor(bus string) error {
	if bus == "" {
		return fmt.Errorf("bus id is required")
	}
	sample, err := sensor.NewOneWire(bus).Read()
	if err != nil {
		return err
	}
	fmt.Printf("%.3f C\n", sample.Temperature)
	return nil
}
