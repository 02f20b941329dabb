package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-loopcore/action"
	"go-loopcore/midi"
	"go-loopcore/midisync"
	"go-loopcore/sequencer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "list":
		listPorts()
	case "clock":
		err = monitorClock(ctx, arg(2, ""))
	case "send-clock":
		bpm, _ := strconv.ParseFloat(arg(3, "120"), 64)
		err = sendClock(ctx, arg(2, ""), bpm)
	case "poll":
		pollDevices(ctx)
	default:
		usage()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func arg(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                    - List all MIDI ports")
	fmt.Println("  clock <in-port>         - Follow an incoming clock and print tempo/transport")
	fmt.Println("  send-clock <out> [bpm]  - Send clock, start and stop as a clock master")
	fmt.Println("  poll                    - Poll for device changes")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

// clockPrinter feeds a slave synchronizer and prints what it decides.
type clockPrinter struct {
	sync *midisync.Synchronizer
}

func (c clockPrinter) ReceiveMidi(msg gomidi.Message, ts float64) {
	c.sync.Receive(msg, ts, sequencer.DefaultBeats)
}

func monitorClock(ctx context.Context, name string) error {
	in, err := gomidi.FindInPort(name)
	if err != nil {
		return err
	}
	actions := make(action.Chan, 64)
	clk := midisync.New(midisync.Slave, nil, actions)

	clock, err := midi.ListenClock(in, clockPrinter{clk})
	if err != nil {
		return err
	}
	defer clock.Close()

	fmt.Printf("Following clock on %s. Ctrl+C to exit.\n", in.String())
	for {
		select {
		case <-ctx.Done():
			return nil
		case a := <-actions:
			fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), a)
		}
	}
}

func sendClock(ctx context.Context, name string, bpm float64) error {
	port, err := gomidi.FindOutPort(name)
	if err != nil {
		return err
	}
	out, err := midi.OpenOutput(port, 256)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		out.Run(runCtx)
		close(done)
	}()

	const rate, block = 48000, 256
	cfg := sequencer.DefaultConfig(rate)
	cfg.Bpm = sequencer.ClampBpm(bpm)
	clk := midisync.New(midisync.Master, out, nil)

	fmt.Printf("Sending clock at %.1f BPM to %s. Ctrl+C to stop.\n", cfg.Bpm, port.String())
	clk.SendStart()

	ticker := time.NewTicker(time.Duration(block) * time.Second / rate)
	defer ticker.Stop()
	var elapsed int64
	for {
		select {
		case <-ctx.Done():
			clk.SendStop()
			cancel() // Run flushes the stop on its way out
			<-done
			fmt.Println("Stopped.")
			return nil
		case <-ticker.C:
			clk.Advance(elapsed, elapsed+block, cfg.FramesInBeat())
			elapsed += block
		}
	}
}

func pollDevices(ctx context.Context) {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect devices to test. Ctrl+C to exit.")

	last := ""
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		var names []string
		for _, p := range gomidi.GetInPorts() {
			names = append(names, "in:"+p.String())
		}
		for _, p := range gomidi.GetOutPorts() {
			names = append(names, "out:"+p.String())
		}
		if current := strings.Join(names, ","); current != last {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			for _, n := range names {
				fmt.Printf("  %s\n", n)
			}
			last = current
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
