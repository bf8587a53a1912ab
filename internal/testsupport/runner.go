package testsupport

import (
	"context"
	"io"
	"sync"

	"soundcheck/internal/decoder"
	"soundcheck/internal/pcm"
)

// FakeRunner is a decoder.ProcessRunner that never starts a process.
type FakeRunner struct {
	// Respond answers each command. A nil Respond fails every call.
	Respond func(decoder.Command) (decoder.Result, error)

	mu    sync.Mutex
	calls []decoder.Command
}

// Run records cmd, drains its stdin and returns Respond's answer.
func (f *FakeRunner) Run(ctx context.Context, cmd decoder.Command) (decoder.Result, error) {
	if cmd.Stdin != nil {
		_, _ = io.Copy(io.Discard, cmd.Stdin)
	}
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return decoder.Result{ExitCode: -1}, err
	}
	if f.Respond == nil {
		return decoder.Result{ExitCode: 1, Stderr: "fake runner: no response"}, decoder.ErrDecode
	}
	return f.Respond(cmd)
}

// Calls returns the commands seen so far.
func (f *FakeRunner) Calls() []decoder.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]decoder.Command(nil), f.calls...)
}

// PCMResponse answers every command with buf encoded as s16le.
func PCMResponse(buf pcm.Buffer) func(decoder.Command) (decoder.Result, error) {
	data := pcm.ToS16LE(buf.Samples)
	return func(decoder.Command) (decoder.Result, error) {
		return decoder.Result{Stdout: append([]byte(nil), data...)}, nil
	}
}
