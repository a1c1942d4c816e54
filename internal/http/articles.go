package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"conduit/internal/domain"
)

type createArticleRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Body        string `json:"body"`
}

type ArticleResponse struct {
	Slug           string `json:"slug"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Body           string `json:"body"`
	AuthorID       int64  `json:"authorId"`
	FavoritesCount int    `json:"favoritesCount"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

func (h *Handler) createArticle(c *gin.Context) {
	var req createArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	article, err := h.articles.CreateArticle(c.Request.Context(), currentUserID(c), req.Title, req.Description, req.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, articleToResponse(*article))
}

func (h *Handler) listArticles(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		articles []domain.Article
		err      error
	)
	if author := strings.TrimSpace(c.Query("author")); author != "" {
		var user *domain.User
		user, err = h.users.GetByUsername(ctx, author)
		if err == nil {
			articles, err = h.articles.ListByAuthor(ctx, user.ID)
		}
	} else {
		articles, err = h.articles.ListArticles(ctx)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]ArticleResponse, len(articles))
	for i := range articles {
		resp[i] = articleToResponse(articles[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getArticle(c *gin.Context) {
	article, err := h.articles.GetArticle(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, articleToResponse(*article))
}

func (h *Handler) favoriteArticle(c *gin.Context) {
	article, err := h.articles.Favorite(c.Request.Context(), currentUserID(c), c.Param("slug"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, articleToResponse(*article))
}

func (h *Handler) unfavoriteArticle(c *gin.Context) {
	article, err := h.articles.Unfavorite(c.Request.Context(), currentUserID(c), c.Param("slug"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, articleToResponse(*article))
}

func articleToResponse(article domain.Article) ArticleResponse {
	return ArticleResponse{
		Slug:           article.Slug,
		Title:          article.Title,
		Description:    article.Description,
		Body:           article.Body,
		AuthorID:       article.AuthorID,
		FavoritesCount: article.FavoritesCount,
		CreatedAt:      formatTime(article.CreatedAt),
		UpdatedAt:      formatTime(article.UpdatedAt),
	}
}
