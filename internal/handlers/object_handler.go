package handlers

import (
	"net/http"
	"strings"

	"datalens/pkg/storage"

	"github.com/gin-gonic/gin"
)

// ObjectHandler serves files kept by the in-memory blob store so the pipeline can
// download them the same way it downloads from a bucket.
type ObjectHandler struct {
	store *storage.MemoryStore
}

func NewObjectHandler(store *storage.MemoryStore) *ObjectHandler {
	return &ObjectHandler{store: store}
}

func (h *ObjectHandler) Get(c *gin.Context) {
	if c.Param("bucket") != h.store.Bucket() {
		c.Status(http.StatusNotFound)
		return
	}
	content, ok := h.store.Get(strings.TrimPrefix(c.Param("key"), "/"))
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", content)
}
