// Command voicecore-monitor runs the capture-to-dispatch pipeline against a
// live microphone and renders the session in the terminal: connection status,
// the in-flight partial, committed fragments, and every finalized utterance
// with its dispatch outcome. Space toggles the session, q quits.
//
// Set VOICECORE_DISPATCH_URL to forward finalized utterances to an HTTP
// collaborator; without it utterances are only displayed.
package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	voicecore "github.com/questlog/voicecore/core"
)

func main() {
	var dispatcher voicecore.Dispatcher
	if endpoint, ok := os.LookupEnv("VOICECORE_DISPATCH_URL"); ok {
		dispatcher = newHTTPDispatcher(endpoint)
	}

	pipeline := voicecore.NewPipeline(
		voicecore.WithDispatcher(dispatcher),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var program *tea.Program
	send := func(msg tea.Msg) {
		program.Send(msg)
	}

	start := func() error {
		return pipeline.Start(ctx,
			voicecore.WithStatusChangedCallback(func(status, errMessage string) {
				send(statusChangedMsg{status: status, errMessage: errMessage})
			}),
			voicecore.WithPartialTranscriptCallback(func(transcript string) {
				send(partialTranscriptMsg(transcript))
			}),
			voicecore.WithCommittedFragmentCallback(func(fragment string) {
				send(committedFragmentMsg(fragment))
			}),
			voicecore.WithUtteranceCallback(func(utterance string) {
				send(utteranceFinalizedMsg(utterance))
			}),
			voicecore.WithDispatchErrorCallback(func(err error) {
				send(dispatchFailedMsg{err: err})
			}),
		)
	}

	program = tea.NewProgram(newMonitorModel(start, pipeline.Stop), tea.WithAltScreen())
	defer pipeline.Stop()

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Monitor exited with error: %v\n", err)
		os.Exit(1)
	}
}
