package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/llmcouncil/councild/internal/errors"
)

const conversationNotFoundDetail = "Conversation not found"

func (s *Server) handleListConversations(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Conversation storage is disabled"})
		return
	}
	metas, err := s.store.List(c.Request.Context())
	if err != nil {
		s.requestLogger(c).Error("listing conversations failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": metas})
}

func (s *Server) handleCreateConversation(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Conversation storage is disabled"})
		return
	}
	conv, err := s.store.Create(c.Request.Context())
	if err != nil {
		s.requestLogger(c).Error("creating conversation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create conversation"})
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Conversation storage is disabled"})
		return
	}
	conv, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, errors.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": conversationNotFoundDetail})
			return
		}
		s.requestLogger(c).Error("loading conversation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to load conversation"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Conversation storage is disabled"})
		return
	}
	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, errors.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": conversationNotFoundDetail})
			return
		}
		s.requestLogger(c).Error("deleting conversation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to delete conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
