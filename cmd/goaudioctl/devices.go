package main

import (
	"fmt"
	"os"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/ownaudio/goaudio/pkg/sink"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List PortAudio output and input devices",
	Args:  cobra.NoArgs,
	Run:   runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) {
	if err := portaudio.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "initialize PortAudio: %v\n", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	s := sink.New(0)

	outs, err := s.EnumerateOutputs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "enumerate outputs: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Output devices:")
	for _, d := range outs {
		fmt.Printf("  [%d] %s (max outputs: %d)\n", d.Index, d.Name, d.MaxOutputs)
	}

	ins, err := s.EnumerateInputs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "enumerate inputs: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Input devices:")
	for _, d := range ins {
		fmt.Printf("  [%d] %s (max inputs: %d)\n", d.Index, d.Name, d.MaxInputs)
	}

	if def, err := s.DefaultOutput(); err == nil {
		fmt.Printf("Default output: [%d] %s\n", def.Index, def.Name)
	}
}
