// Package api is the transport between the desktop shell and the host.
//
// Endpoints (all under /api/v1):
//
//	GET  /health              version, live process count, component checks
//	POST /invoke              {"operation","args","data"} → {"result":[...]}
//	GET  /operations          registered operation names
//	GET  /processes           builds currently registered
//	GET  /processes/history   recent runs (?limit=N)
//	GET  /ws                  notifications and invoke over WebSocket
//
// Failed invocations use the envelope {status, code, message} with codes
// unsupported_operation (404), bad_request (400) and operation_failed (500).
//
// The Hub is the supervisor's primary process.Sink: clients subscribe to
// child_process.stdout, child_process.stderr and child_process.exit and
// receive {"type":"event","event_type":<channel>,"payload":{...}} frames.
// Delivery is best effort; a client with a full send buffer misses events.
//
// When a token secret is configured every route except /health requires a
// bearer token (or ?token= for WebSocket); observer-scoped tokens cannot
// invoke operations.
package api
