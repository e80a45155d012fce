// Package webhook receives GitHub webhook deliveries for the configured
// repository.
//
// # Security Model
//
// - Signatures are HMAC-SHA256 over the raw body, sent as "sha256=<hex>" in
// X-Hub-Signature-256, and compared with hmac.Equal (constant time)
// - The body is verified before it is parsed
// - Body size limits are enforced before verification
// - Rejections carry no detail about why verification failed
// - The secret is fixed at construction time and never read from the environment per request
//
// # Request Flow
//
//  1. HTTP POST arrives at the webhook path (413 if the body is too large)
//  2. Signature verified (401 Rejected on failure)
//  3. ping events are acknowledged (200) without a delivery id or handler
//  4. A delivery without X-GitHub-Delivery is refused (400)
//  5. The delivery id is claimed in the dedupe store; a lost claim is Skipped (200)
//  6. Event types without a handler release the claim and are Ignored (200)
//  7. The handler runs under a deadline equal to the claim lease
//  8. Handler success marks the id processed: Completed (200)
//  9. Handler failure releases the claim: Failed (500), so the sender redelivers
//  10. Dedupe store errors, or a claim that expired and was taken over: Failed (503)
//
// Release and mark act only on the claim token this delivery obtained.
//
// Every outcome is published as a "webhook.<state>" event.
//
// # Example Usage
//
//	hub := events.NewHub(256)
//	d := webhook.NewDispatcher(secret, dedupe.NewMemory(dedupe.Options{}), hub, logger)
//	webhook.NewEventRecorder(events.NewLog(256, hub)).Register(d)
//	r.Method(http.MethodPost, "/webhook", webhook.New(webhook.Config{}, d, logger))
package webhook
