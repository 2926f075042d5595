// Package process supervises Gradle wrapper builds spawned on behalf of the
// desktop shell.
//
// A Supervisor owns one Registry (process id → live handle), which is the
// single source of truth for "is this build still running". Each successful
// Spawn starts exactly one relay goroutine that drains the child's stdout,
// stderr and exit status into ordered Events delivered to a Sink. Kill removes
// the entry and requests termination without waiting; the relay still
// delivers the exit event later and its own deregistration is a no-op.
//
// Features:
//   - Non-blocking spawn that returns the OS pid immediately
//   - JAVA_HOME override applied only when non-empty
//   - Per-process FIFO event stream ending with exactly one exit event
//   - Idempotent, fire-and-forget termination with SIGKILL escalation
//   - Supervisor-scoped shutdown that terminates every remaining build and
//     waits for exit observers to return
//
// Example usage:
//
//	sup := process.NewSupervisor(process.DefaultConfig(), process.WithSink(hub))
//	id, err := sup.Spawn(ctx, process.LaunchRequest{
//	    WorkDir:  "/home/me/battlecode-scaffold",
//	    Args:     []string{"build"},
//	    JavaHome: "/usr/lib/jvm/java-8-openjdk",
//	})
//	if err != nil {
//	    return err
//	}
//	defer sup.Shutdown(context.Background())
//	...
//	sup.Kill(id)
package process
