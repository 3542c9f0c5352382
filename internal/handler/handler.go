package handler

import (
	"errors"
	"net/http"

	"github.com/dmorgan81/genserve/internal/capability"
	"github.com/dmorgan81/genserve/internal/feed"
	"github.com/dmorgan81/genserve/internal/generate"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/gin-gonic/gin"
	"github.com/samber/do"
)

// Handler serves the generation HTTP surface.
type Handler struct {
	service  *generate.Service
	reporter *capability.Reporter
	info     capability.Info
	feed     *feed.Generator
}

func NewHandler(i *do.Injector) (*Handler, error) {
	h := &Handler{
		service:  do.MustInvoke[*generate.Service](i),
		reporter: do.MustInvoke[*capability.Reporter](i),
		info:     do.MustInvoke[capability.Info](i),
	}
	if gen, err := do.Invoke[*feed.Generator](i); err == nil {
		h.feed = gen
	}
	return h, nil
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/generate", h.Generate)
	r.GET("/health", h.Health)
	r.GET("/model-info", h.ModelInfo)
	r.GET("/feed.rss", h.Feed)
}

func (h *Handler) Generate(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		abort(c, http.StatusBadRequest, err, err.Error())
		return
	}

	req, err := generate.Decode(body)
	if err != nil {
		var verr *generate.ValidationError
		if errors.As(err, &verr) {
			abort(c, http.StatusUnprocessableEntity, err, verr.Issues)
			return
		}
		abort(c, http.StatusBadRequest, err, err.Error())
		return
	}

	resp, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		var invErr *generate.InvocationError
		switch {
		case errors.Is(err, generate.ErrNotReady):
			abort(c, http.StatusServiceUnavailable, err, "Model not loaded")
		case errors.As(err, &invErr):
			abort(c, http.StatusInternalServerError, err, invErr.Error())
		default:
			abort(c, http.StatusServiceUnavailable, err, err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.reporter.Status(c.Request.Context()))
}

func (h *Handler) ModelInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.info)
}

func (h *Handler) Feed(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}

	rss, err := h.feed.Generate(c.Request.Context())
	if err != nil {
		log.FromContextOrDiscard(c.Request.Context()).Error("failed to build feed", "error", err)
		abort(c, http.StatusInternalServerError, err, "failed to build feed")
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", rss)
}

// abort writes the {"detail": ...} body every error response carries.
func abort(c *gin.Context, status int, err error, detail any) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
