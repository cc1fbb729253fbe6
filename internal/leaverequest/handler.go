package leaverequest

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/employee"
	"github.com/frahmantamala/leave-management/internal/storage"
	"github.com/frahmantamala/leave-management/internal/transport"
	"github.com/go-chi/chi"
)

const maxMultipartMemory = 8 << 20

type ServiceAPI interface {
	Submit(ctx context.Context, actor *employee.Employee, dto SubmitDTO, upload *Upload) (*Result, error)
	Decide(ctx context.Context, actor *employee.Employee, requestID int64, stage Stage, dto DecideDTO) (*Result, error)
	Cancel(ctx context.Context, actor *employee.Employee, requestID int64) (*Result, error)
	Modify(ctx context.Context, actor *employee.Employee, requestID int64, dto ModifyDTO, upload *Upload) (*Result, error)
	Get(ctx context.Context, viewer *employee.Employee, requestID int64) (*View, error)
	Justification(ctx context.Context, viewer *employee.Employee, requestID int64) (io.ReadCloser, *storage.StoredFile, error)
	Mine(ctx context.Context, viewer *employee.Employee) ([]*View, error)
	Modifiable(ctx context.Context, viewer *employee.Employee) ([]*View, error)
	Team(ctx context.Context, viewer *employee.Employee) ([]*View, error)
	Queue(ctx context.Context, viewer *employee.Employee, stage Stage) ([]*View, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: baseHandler, Service: service}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*employee.Employee, bool) {
	current, ok := employee.FromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return nil, false
	}
	return current, true
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// upload returns the justification part of a multipart request, if any. The
// caller closes the returned closer.
func (h *Handler) upload(r *http.Request) (*Upload, io.Closer, error) {
	file, header, err := r.FormFile("justification")
	if err == http.ErrMissingFile {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, internal.ErrFileRejected.WithCause(err)
	}
	return &Upload{Name: header.Filename, Reader: file}, file, nil
}

// SubmitLeaveRequest handles POST /leave-requests
func (h *Handler) SubmitLeaveRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var (
		dto    SubmitDTO
		upload *Upload
	)
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			h.WriteAppError(w, internal.NewValidationError("invalid multipart body", internal.ErrCodeValidationFailed).WithCause(err))
			return
		}
		typeID, _ := strconv.ParseInt(r.FormValue("leave_type_id"), 10, 64)
		dto = SubmitDTO{
			LeaveTypeID: typeID,
			StartDate:   r.FormValue("start_date"),
			EndDate:     r.FormValue("end_date"),
			Reason:      r.FormValue("reason"),
		}
		var (
			closer io.Closer
			err    error
		)
		if upload, closer, err = h.upload(r); err != nil {
			h.WriteAppError(w, err)
			return
		}
		if closer != nil {
			defer closer.Close()
		}
	} else if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	result, err := h.Service.Submit(r.Context(), actor, dto, upload)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, result)
}

// ModifyLeaveRequest handles PUT /leave-requests/{id}
func (h *Handler) ModifyLeaveRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	var (
		dto    ModifyDTO
		upload *Upload
	)
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			h.WriteAppError(w, internal.NewValidationError("invalid multipart body", internal.ErrCodeValidationFailed).WithCause(err))
			return
		}
		if dto, err = modifyFromForm(r); err != nil {
			h.WriteAppError(w, err)
			return
		}
		var closer io.Closer
		if upload, closer, err = h.upload(r); err != nil {
			h.WriteAppError(w, err)
			return
		}
		if closer != nil {
			defer closer.Close()
		}
	} else if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	result, err := h.Service.Modify(r.Context(), actor, id, dto, upload)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

func modifyFromForm(r *http.Request) (ModifyDTO, error) {
	var dto ModifyDTO
	form := r.MultipartForm.Value
	if v, ok := form["leave_type_id"]; ok && len(v) > 0 {
		id, err := strconv.ParseInt(v[0], 10, 64)
		if err != nil {
			return dto, internal.NewValidationFieldError("leave_type_id", "leave_type_id must be a number", internal.ErrCodeValidationFailed)
		}
		dto.LeaveTypeID = &id
	}
	if v, ok := form["start_date"]; ok && len(v) > 0 {
		dto.StartDate = &v[0]
	}
	if v, ok := form["end_date"]; ok && len(v) > 0 {
		dto.EndDate = &v[0]
	}
	if v, ok := form["reason"]; ok && len(v) > 0 {
		dto.Reason = &v[0]
	}
	return dto, nil
}

// CancelLeaveRequest handles DELETE /leave-requests/{id}
func (h *Handler) CancelLeaveRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	result, err := h.Service.Cancel(r.Context(), actor, id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// DecideStage handles PUT /leave-requests/{id}/stages/{stage}
func (h *Handler) DecideStage(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	stage, err := ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	var dto DecideDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	result, err := h.Service.Decide(r.Context(), actor, id, stage, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// GetLeaveRequest handles GET /leave-requests/{id}
func (h *Handler) GetLeaveRequest(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	view, err := h.Service.Get(r.Context(), viewer, id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

// DownloadJustification handles GET /leave-requests/{id}/justification
func (h *Handler) DownloadJustification(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := h.URLParamID(r, "id")
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	rc, info, err := h.Service.Justification(r.Context(), viewer, id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	defer rc.Close()

	name := info.OriginalName
	if name == "" {
		name = info.Token
	}
	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.Logger.Warn("failed to stream justification", "error", err, "leave_request_id", id)
	}
}

func (h *Handler) writeList(w http.ResponseWriter, views []*View, err error) {
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ListResponse{Requests: views, Count: len(views)})
}

// GetMyLeaveRequests handles GET /leave-requests/my
func (h *Handler) GetMyLeaveRequests(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.actor(w, r)
	if !ok {
		return
	}
	views, err := h.Service.Mine(r.Context(), viewer)
	h.writeList(w, views, err)
}

// GetModifiableLeaveRequests handles GET /leave-requests/modifiable
func (h *Handler) GetModifiableLeaveRequests(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.actor(w, r)
	if !ok {
		return
	}
	views, err := h.Service.Modifiable(r.Context(), viewer)
	h.writeList(w, views, err)
}

// GetTeamLeaveRequests handles GET /leave-requests/team
func (h *Handler) GetTeamLeaveRequests(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.actor(w, r)
	if !ok {
		return
	}
	views, err := h.Service.Team(r.Context(), viewer)
	h.writeList(w, views, err)
}

// GetQueue handles GET /leave-requests/queue/{stage}
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.actor(w, r)
	if !ok {
		return
	}
	stage, err := ParseStage(strings.TrimSpace(chi.URLParam(r, "stage")))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	views, err := h.Service.Queue(r.Context(), viewer, stage)
	h.writeList(w, views, err)
}
