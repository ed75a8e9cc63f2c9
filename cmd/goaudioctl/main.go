// Command goaudioctl is the thin CLI front end over pkg/engine: it wires a
// PortAudio sink and the Master Clock/Mixer/Source stack the same way the
// teacher's cmd/player.go and cmd/fileplayer.go once did, kept intentionally
// small since the engine itself carries all the mixing/sync logic.
package main

func main() {
	Execute()
}
