package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"songforge/core/library"
	"songforge/logger"

	"github.com/gorilla/mux"
)

const (
	// maxUploadSize bounds one multipart upload request.
	maxUploadSize = 250 << 20
	// multipartMemory is kept in memory; the rest spills to temp files.
	multipartMemory = 32 << 20
)

// parseUpload parses a multipart body, mapping size errors to 400.
func parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: upload exceeds %d MB", library.ErrInvalidInput, maxUploadSize>>20)
		}
		return fmt.Errorf("%w: invalid multipart form", library.ErrInvalidInput)
	}
	return nil
}

// formFile opens an optional multipart file. A missing field yields nil.
func formFile(r *http.Request, field string) (*library.File, func(), error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, fmt.Errorf("%w: %s: %v", library.ErrInvalidInput, field, err)
	}
	if header.Size == 0 {
		file.Close()
		return nil, func() {}, nil
	}
	return multipartFile(file, header), func() { file.Close() }, nil
}

func multipartFile(file multipart.File, header *multipart.FileHeader) *library.File {
	return &library.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
}

// openFiles opens each named field, closing everything on failure.
func openFiles(r *http.Request, fields ...string) ([]*library.File, func(), error) {
	files := make([]*library.File, len(fields))
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	for i, field := range fields {
		f, closeFn, err := formFile(r, field)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, closeFn)
		files[i] = f
	}
	return files, closeAll, nil
}

// GetTracksHandler 返回当前用户的曲目，新的在前
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	tracks, err := h.Library.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

// GetPublicTracksHandler 返回全部曲目，匿名可访问
func (h *APIHandler) GetPublicTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.Library.ListPublic(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

// UploadTrackHandler handles multipart track uploads.
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	if err := parseUpload(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, closeAll, err := openFiles(r, "songFile", "secondarySongFile", "coverFile")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeAll()

	track, err := h.Library.Upload(r.Context(), library.UploadInput{
		UserID:      userID,
		Title:       r.FormValue("title"),
		ArtistStyle: r.FormValue("artistStyle"),
		Primary:     files[0],
		Secondary:   files[1],
		Cover:       files[2],
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, track)
}

// DeleteTrackHandler 删除曲目及其媒体对象
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	if err := h.Library.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SwapVersionsHandler 交换主/副版本并持久化
func (h *APIHandler) SwapVersionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	track, err := h.Library.SwapVersions(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info("[Library] 版本已交换", logger.String("trackId", track.ID))
	writeJSON(w, http.StatusOK, track)
}

// songRequestBody is the public song request form.
type songRequestBody struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Description string `json:"description"`
}

// SubmitRequestHandler 匿名点歌
func (h *APIHandler) SubmitRequestHandler(w http.ResponseWriter, r *http.Request) {
	var body songRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := h.Library.SubmitRequest(r.Context(), body.Title, body.Artist, body.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListRequestsHandler 列出点歌请求
func (h *APIHandler) ListRequestsHandler(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Library.ListRequests(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func trimmed(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}
