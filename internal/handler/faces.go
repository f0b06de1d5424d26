package handler

import (
	"context"
	"io"
	"net/http"

	"facewatch/internal/logger"
	"facewatch/internal/model"
)

const maxFaceUpload = 10 << 20

// FaceManager enrolls and removes known faces.
type FaceManager interface {
	List() []model.KnownFace
	Enroll(ctx context.Context, name string, image []byte) (*model.KnownFace, error)
	Remove(ctx context.Context, name string) error
}

// FacesHandler serves GET (list), POST (multipart "name" + "image") and DELETE (?name=) on /api/faces.
func FacesHandler(faces FaceManager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			list := faces.List()
			if list == nil {
				list = []model.KnownFace{}
			}
			writeJSON(w, logger, http.StatusOK, list)

		case http.MethodPost:
			r.Body = http.MaxBytesReader(w, r.Body, maxFaceUpload)
			if err := r.ParseMultipartForm(maxFaceUpload); err != nil {
				writeError(w, logger, http.StatusBadRequest, "invalid upload")
				return
			}
			name := r.FormValue("name")
			file, _, err := r.FormFile("image")
			if err != nil {
				writeError(w, logger, http.StatusBadRequest, "image file required")
				return
			}
			defer file.Close()
			image, err := io.ReadAll(file)
			if err != nil {
				writeError(w, logger, http.StatusBadRequest, "could not read image")
				return
			}

			face, err := faces.Enroll(r.Context(), name, image)
			if err != nil {
				logger.Warning("Enrollment of %q failed: %v", name, err)
				writeError(w, logger, statusFor(err), err.Error())
				return
			}
			writeJSON(w, logger, http.StatusCreated, face)

		case http.MethodDelete:
			name := r.URL.Query().Get("name")
			if name == "" {
				writeError(w, logger, http.StatusBadRequest, "name required")
				return
			}
			if err := faces.Remove(r.Context(), name); err != nil {
				writeError(w, logger, statusFor(err), err.Error())
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
