// Package acpclient drives a long-running interactive agent that runs
// inside an isolated remote container, reachable only through an "exec
// into container" stdio channel. It speaks a newline-delimited JSON-RPC
// control protocol: handshake, session create/resume bound to a working
// directory, prompt turns streamed back as typed events, and clean
// teardown.
//
// # Basic Usage
//
//	ctx := context.Background()
//	client := acpclient.New(
//	    acpclient.WithCommand([]string{"kubectl", "exec", "-i", pod, "--", "agent", "--acp"}),
//	)
//	if err := client.Start(ctx, "/workspace", 30*time.Second); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Stop()
//
//	sessionID, err := client.ResumeOrCreateSession(ctx, "/workspace", 15*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	events, err := client.SendMessage(ctx, sessionID, "hello", 5*time.Minute)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for ev := range events {
//	    switch e := ev.(type) {
//	    case acpclient.TextChunkEvent:
//	        fmt.Print(e.Text)
//	    case acpclient.TurnCompleteEvent:
//	        fmt.Printf("\n[%s]\n", e.StopReason)
//	    case acpclient.ProtocolErrorEvent:
//	        fmt.Printf("\nerror %d: %s\n", e.Code, e.Message)
//	    }
//	}
//
// The event sequence is lazy, single-pass and non-restartable; it ends
// with exactly one terminal event (TurnCompleteEvent or
// ProtocolErrorEvent), with synthetic KeepaliveEvent markers injected
// while the agent is idle.
//
// # Concurrency
//
// Each client owns its transport exclusively and runs exactly one
// background frame reader. The client itself is not safe for concurrent
// operations: at most one session or turn call may be in flight at a
// time, which is what makes the internal requeue-on-mismatch
// correlation correct. Run multiple clients for concurrent turns.
//
// # Session resumption
//
// ResumeOrCreateSession prefers reattaching to a session the agent
// already holds for the working directory over creating a new one, so
// independently restarted client replicas do not discard conversational
// context the agent has persisted.
package acpclient
