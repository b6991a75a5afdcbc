package server

import "net/http"

// Route describes one endpoint.
type Route struct {
	Method      string
	Path        string
	Description string
}

// Pattern returns the ServeMux pattern for the route.
func (r Route) Pattern() string {
	return r.Method + " " + r.Path
}

// Routes returns every endpoint the server exposes.
func Routes() []Route {
	return []Route{
		{http.MethodGet, "/health", "Health check"},

		// Images
		{http.MethodPost, "/blur_image", "Blur an uploaded image (multipart field \"image\") and save it as JPEG"},
		{http.MethodPost, "/upload_image", "Save a base64 image capture ({\"imageData\": \"data:image/jpeg;base64,...\"})"},

		// Lookup and prediction
		{http.MethodGet, "/get_coordinates", "Geocode a place name (?location=...)"},
		{http.MethodPost, "/predict_species", "Predict an iris species from four measurements"},

		// Side effects
		{http.MethodPost, "/send_emails", "Send one email to each recipient, one at a time"},
		{http.MethodPost, "/text_to_speech", "Speak a message on the host audio device"},
	}
}

func (s *Server) registerRoutes() {
	handlers := map[string]http.HandlerFunc{
		"/health":          s.handleHealth,
		"/blur_image":      s.handleBlurImage,
		"/upload_image":    s.handleUploadImage,
		"/get_coordinates": s.handleGetCoordinates,
		"/predict_species": s.handlePredictSpecies,
		"/send_emails":     s.handleSendEmails,
		"/text_to_speech":  s.handleTextToSpeech,
	}

	for _, route := range Routes() {
		s.router.HandleFunc(route.Pattern(), handlers[route.Path])
	}
}
