package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ironsheep/toolbox-api/internal/classifier"
	"github.com/ironsheep/toolbox-api/internal/geocode"
	"github.com/ironsheep/toolbox-api/internal/mailer"
)

// Response bodies shared by more than one route.
const (
	msgNoImageFile     = "No image file provided"
	msgNoImageData     = "Error: No image data received"
	msgCaptured        = "Image captured successfully!"
	msgNoLocation      = "No location provided"
	msgNotFound        = "Location not found"
	msgGeocodeTimeout  = "Geocoding service timed out"
	msgInvalidFeatures = "Error: Input values must be numeric and include all required fields."
	msgNoMessage       = "Error: No message provided."
)

type errorBody struct {
	Error string `json:"error"`
}

type blurResponse struct {
	Status           string `json:"status"`
	BlurredImagePath string `json:"blurred_image_path,omitempty"`
	Error            string `json:"error,omitempty"`
}

type coordinatesResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type predictionResponse struct {
	PredictedSpecies string `json:"predicted_species"`
}

type captureRequest struct {
	ImageData *string `json:"imageData"`
}

type emailRequest struct {
	Subject    *string  `json:"subject"`
	Body       *string  `json:"body"`
	Recipients []string `json:"recipients"`
}

type emailResponse struct {
	Results []mailer.Result `json:"results"`
}

type speechRequest struct {
	Message json.RawMessage `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleBlurImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, blurResponse{Status: "failed", Error: msgNoImageFile})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, blurResponse{Status: "failed", Error: msgNoImageFile})
		return
	}
	defer file.Close()

	result, err := s.deps.Blurrer.BlurToFile(file)
	if err != nil {
		s.logger.Error("blur failed", "error", err, "request_id", GetRequestID(r.Context()))
		writeJSON(w, http.StatusInternalServerError, blurResponse{Status: "failed", Error: err.Error()})
		return
	}

	s.logger.Debug("image blurred", "path", result.Path, "width", result.Width, "height", result.Height)
	writeJSON(w, http.StatusOK, blurResponse{Status: "success", BlurredImagePath: result.Path})
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImageData == nil || *req.ImageData == "" {
		writeText(w, http.StatusBadRequest, msgNoImageData)
		return
	}

	path, err := s.deps.Capture.Save(*req.ImageData)
	if err != nil {
		s.logger.Error("capture failed", "error", err, "request_id", GetRequestID(r.Context()))
		writeText(w, http.StatusInternalServerError, "Error saving image: "+err.Error())
		return
	}

	s.logger.Debug("image captured", "path", path)
	writeText(w, http.StatusOK, msgCaptured)
}

func (s *Server) handleGetCoordinates(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgNoLocation})
		return
	}

	loc, err := s.deps.Geocoder.Geocode(r.Context(), location)
	if err == nil {
		writeJSON(w, http.StatusOK, coordinatesResponse{Latitude: loc.Latitude, Longitude: loc.Longitude})
		return
	}

	var svcErr *geocode.ServiceError
	switch {
	case errors.Is(err, geocode.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: msgNotFound})
	case errors.Is(err, geocode.ErrTimeout):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msgGeocodeTimeout})
	case errors.As(err, &svcErr):
		s.logger.Warn("geocoding service error", "location", location, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Geocoding service error: " + svcErr.Error()})
	default:
		s.logger.Error("geocoding failed", "location", location, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "An unexpected error occurred: " + err.Error()})
	}
}

func (s *Server) handlePredictSpecies(w http.ResponseWriter, r *http.Request) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeText(w, http.StatusBadRequest, msgInvalidFeatures)
		return
	}

	var features classifier.Features
	for i, name := range classifier.FeatureNames {
		v, err := parseNumber(fields[name])
		if err != nil {
			writeText(w, http.StatusBadRequest, msgInvalidFeatures)
			return
		}
		features[i] = v
	}

	species, err := s.deps.Predictor.Predict(features)
	if err != nil {
		if errors.Is(err, classifier.ErrInvalidFeatures) {
			writeText(w, http.StatusBadRequest, msgInvalidFeatures)
			return
		}
		s.logger.Error("prediction failed", "error", err)
		writeText(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, predictionResponse{PredictedSpecies: species})
}

func (s *Server) handleSendEmails(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return
	}

	switch {
	case req.Subject == nil:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing required field: subject"})
		return
	case req.Body == nil:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing required field: body"})
		return
	case req.Recipients == nil:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing required field: recipients"})
		return
	}

	// Every recipient is attempted even if the client goes away; smtp.timeout
	// bounds each send.
	msg := mailer.Message{Subject: *req.Subject, Body: *req.Body}
	results := s.deps.Mailer.SendAll(context.WithoutCancel(r.Context()), msg, req.Recipients)

	writeJSON(w, http.StatusOK, emailResponse{Results: results})
}

func (s *Server) handleTextToSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, msgNoMessage)
		return
	}

	var message string
	if err := json.Unmarshal(req.Message, &message); err != nil || message == "" {
		writeText(w, http.StatusBadRequest, msgNoMessage)
		return
	}

	if err := s.deps.Speaker.Speak(context.WithoutCancel(r.Context()), message); err != nil {
		s.logger.Error("speech failed", "error", err, "request_id", GetRequestID(r.Context()))
		writeText(w, http.StatusInternalServerError, "Error: "+err.Error())
		return
	}

	writeText(w, http.StatusOK, fmt.Sprintf("Success: The message '%s' was spoken.", message))
}

// parseNumber accepts a JSON number or a string holding one, ignoring
// surrounding whitespace. Absent values, null, booleans and every other JSON
// type are rejected.
func parseNumber(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errors.New("value is missing")
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, fmt.Errorf("value %s is not a number", raw)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is not a number", str)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
