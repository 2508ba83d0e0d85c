package http

// VerifySlackSignature exposes signature verification to tests
var VerifySlackSignature = verifySlackSignature

// MessageFromEvent exposes the event-to-message mapping to tests
var MessageFromEvent = messageFromEvent
