// Package imaging implements the two image endpoints: Gaussian blur of an
// uploaded image and storage of base64 camera captures.
//
// # Blur
//
// A Blurrer decodes JPEG, PNG or GIF input (EXIF orientation is not
// applied), blurs it with a fixed sigma and writes the result as <uuid>.jpg inside its
// output directory. Two engines are available:
//   - EngineImaging: disintegration/imaging, sigma is the Gaussian standard deviation
//   - EngineBild: anthonynsimon/bild, sigma is used as the kernel radius
//
// Output dimensions always equal input dimensions.
//
// # Capture
//
// A CaptureStore strips every "data:image/jpeg;base64," prefix from a
// payload, decodes the rest as standard base64 and writes the bytes without
// validating them. A fixed store overwrites one path; a per-request store
// writes a new file per call.
//
// # Thread Safety
//
// Blurrer and CaptureStore hold no mutable state. Concurrent saves to a fixed
// capture path race on the file; the last write wins.
package imaging
