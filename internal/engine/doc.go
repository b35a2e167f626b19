// Package engine supervises the local LanguageTool server.
//
// The supervisor locates an installation, finds a Java runtime, spawns the
// HTTP server and polls its health endpoint until it answers. Checks that
// fail over to local mode call Start, so it must be cheap to call often.
//
// # Lifecycle
//
//	Stopped ──Start──► Starting ──probe ok──► Ready
//	   ▲                  │                     │
//	   └──── failure ─────┘◄──── exit/Stop ─────┘
//
// Start is idempotent. Concurrent callers share one attempt, and a caller
// whose context ends stops waiting without aborting the attempt for the
// others. An engine that already answers on the configured port is reused
// and marked external; Stop leaves it running.
// Stop during an attempt aborts it: Start returns ErrStoppedDuringStartup
// and any child the attempt spawned is terminated.
//
// # Installation Discovery
//
// Install directories are searched in order, the per-user data directory
// copy first. A directory qualifies when it holds languagetool-server.jar
// and a libs/ directory containing the slf4j jars. A removal marker in the
// data directory disables discovery entirely.
//
// # Usage
//
//	sup := engine.New(engine.DefaultOptions(), engine.WithLogger(logger))
//	defer sup.Close()
//
//	if err := sup.Start(ctx); err != nil {
//	    var se *engine.StartupError
//	    if errors.As(err, &se) {
//	        fmt.Println(se.Remediation())
//	    }
//	}
//
// Startup failures are *StartupError values with a Reason and user-facing
// remediation text.
package engine
