// Package server implements the toolbox-api HTTP surface.
//
// Each route is an independent handler around one collaborator. No handler
// depends on another and none keeps state between requests; the only shared
// values are the collaborators passed to New, all of which are safe for
// concurrent use.
//
// # Routes
//
// Images:
//   - POST /blur_image: multipart "image" field, Gaussian blur, saved as JPEG
//   - POST /upload_image: JSON {"imageData"} base64 data URL capture
//
// Lookup and prediction:
//   - GET  /get_coordinates?location=: geocoding
//   - POST /predict_species: JSON iris measurements to species label
//
// Side effects:
//   - POST /send_emails: JSON {"subject","body","recipients"} per-recipient results
//   - POST /text_to_speech: JSON {"message"}, blocks until spoken
//
// Ambient:
//   - GET  /health
//
// # Error Handling
//
// Every handler converts failures into a response itself:
//   - 400 for missing or malformed input
//   - 404 when geocoding finds nothing
//   - 500 for downstream failures, with the underlying error text
//
// Response bodies keep the shapes clients already depend on: some routes
// answer JSON, others plain text. A recovery middleware turns panics into
// 500 responses so a failing request never takes the process down.
//
// # Usage
//
//	srv, err := server.New(server.Options{Addr: ":5000"}, deps)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
