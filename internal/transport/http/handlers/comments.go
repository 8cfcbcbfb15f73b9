package handlers

import (
	"net/http"

	"github.com/pribylovaa/go-discussions/internal/service"
	"github.com/pribylovaa/go-discussions/internal/thread"
	"github.com/pribylovaa/go-discussions/internal/transport/http/apierrors"
)

func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in CreateCommentRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	c, err := h.Comments.CreateComment(r.Context(), service.CreateCommentInput{
		AuthorID:   p.UserID,
		AuthorName: p.Name,
		Content:    in.Content,
		ParentID:   in.ParentID,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.commentFromModel(*c))
}

// ListComments — вся лента в виде леса; удалённые включены, клиент сам решает, как их показать.
func (h *Handlers) ListComments(w http.ResponseWriter, r *http.Request) {
	forest, err := h.Comments.Thread(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CommentsResponse{
		Comments: h.nodesFromForest(forest),
		Total:    thread.Count(forest),
	})
}

func (h *Handlers) GetComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.Comments.CommentByID(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.commentFromModel(*c))
}

func (h *Handlers) UpdateComment(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in UpdateCommentRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	c, err := h.Comments.UpdateComment(r.Context(), service.UpdateCommentInput{
		ID:          id,
		RequesterID: p.UserID,
		Content:     in.Content,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.commentFromModel(*c))
}

func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.Comments.DeleteComment(r.Context(), id, p.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.commentFromModel(*c))
}

func (h *Handlers) RestoreComment(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.Comments.RestoreComment(r.Context(), id, p.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.commentFromModel(*c))
}
