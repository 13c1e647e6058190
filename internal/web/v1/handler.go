package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
	"github.com/duynhne/mentorpath-service/internal/identity"
	logicv1 "github.com/duynhne/mentorpath-service/internal/logic/v1"
	"github.com/duynhne/mentorpath-service/middleware"
	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"
)

const (
	// ClientCookie identifies the browser client across requests.
	ClientCookie = "mp_client"

	clientKey = "mp.client"
)

// Handler groups HTTP handlers for the API v1.
// Dependencies are injected via the constructor.
type Handler struct {
	clients      *ClientRegistry
	authority    *identity.Authority
	signup       *logicv1.SignupService
	mentors      *logicv1.MentorService
	tags         *logicv1.TagService
	cookieSecure bool
}

// NewHandler creates a new Handler.
func NewHandler(
	clients *ClientRegistry,
	authority *identity.Authority,
	signup *logicv1.SignupService,
	mentors *logicv1.MentorService,
	tags *logicv1.TagService,
	cookieSecure bool,
) *Handler {
	return &Handler{
		clients:      clients,
		authority:    authority,
		signup:       signup,
		mentors:      mentors,
		tags:         tags,
		cookieSecure: cookieSecure,
	}
}

// RegisterRoutes registers all API v1 routes on the given router group.
// Only the sign-in routes start a client for a browser that has none.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	existing := h.clientMiddleware(false)
	starting := h.clientMiddleware(true)

	rg.GET("/auth/session", existing, h.GetSession)
	rg.POST("/auth/login", starting, h.Login)
	rg.GET("/auth/google/url", starting, h.GoogleAuthURL)
	rg.POST("/auth/google", starting, h.LoginWithGoogle)
	rg.POST("/auth/logout", existing, h.Logout)
	rg.POST("/auth/signup", existing, h.Signup)
	rg.GET("/dashboard", existing, h.Dashboard)
	rg.GET("/mentors", h.ListMentors)
	rg.POST("/mentors", existing, h.CreateMentor)
	rg.POST("/profile/tags", h.SuggestTags)
}

// clientMiddleware binds the request to its browser client. A missing or
// swept client is created when create is set or the request carries a
// bearer token, which restores the new client before the handler runs.
// Otherwise the request proceeds without a client.
func (h *Handler) clientMiddleware(create bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cl *client
		if id, err := c.Cookie(ClientCookie); err == nil {
			cl, _ = h.clients.Get(id)
		}

		token := bearerToken(c)
		if cl == nil {
			if !create && token == "" {
				c.Next()
				return
			}
			cl = h.clients.Create()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(ClientCookie, cl.id, 0, "/", "", h.cookieSecure, true)
		}

		cl.mu.Lock()
		defer cl.mu.Unlock()

		if token != "" && !cl.resolver.Session().IsAuthenticated {
			if _, err := cl.idp.Restore(c.Request.Context(), token); err != nil {
				pkgzerolog.FromContext(c.Request.Context()).Warn().Err(err).Msg("Bearer token not restored")
			}
		}

		c.Set(clientKey, cl)
		c.Set(middleware.ClientIDKey, cl.id)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	const bearerPrefix = "Bearer "
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) <= len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(bearerPrefix):])
}

// clientFrom returns the request's client, or nil when the browser has none.
func clientFrom(c *gin.Context) *client {
	cl, _ := c.Get(clientKey)
	v, _ := cl.(*client)
	return v
}

func startSpan(c *gin.Context) (context.Context, trace.Span) {
	return middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
}

func sessionResponse(cl *client) domain.SessionResponse {
	if cl == nil {
		return domain.SessionResponse{Session: domain.LoggedOut()}
	}
	return domain.SessionResponse{
		Session:  cl.resolver.Session(),
		Redirect: cl.nav.Take(),
		Token:    cl.idp.Token(),
	}
}

// GetSession returns the current session of the client.
// GET /api/v1/auth/session
func (h *Handler) GetSession(c *gin.Context) {
	cl := clientFrom(c)
	c.JSON(http.StatusOK, sessionResponse(cl))
}

// Login handles email/password login.
func (h *Handler) Login(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)
	cl := clientFrom(c)

	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		span.RecordError(err)
		logger.Error().Err(err).Msg("Invalid request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.Bool("request.valid", true))

	session, err := cl.resolver.Login(ctx, req.Email, req.Password)
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("Login failed")
		h.writeAuthError(c, err)
		return
	}

	logger.Info().Str("user_id", session.UserID).Str("role", string(session.Role)).Msg("Login successful")
	c.JSON(http.StatusOK, sessionResponse(cl))
}

// GoogleAuthURL returns the Google consent URL with a fresh state value.
// GET /api/v1/auth/google/url
func (h *Handler) GoogleAuthURL(c *gin.Context) {
	cl := clientFrom(c)
	state := uuid.NewString()

	url, err := h.authority.AuthCodeURL(domain.ProviderGoogle, state)
	if err != nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
		return
	}

	cl.oauthState = state
	c.JSON(http.StatusOK, gin.H{"url": url, "state": state})
}

// LoginWithGoogle completes Google sign-in with an authorization code.
func (h *Handler) LoginWithGoogle(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)
	cl := clientFrom(c)

	var req domain.GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		span.RecordError(err)
		logger.Error().Err(err).Msg("Invalid request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// The state is single use and must have been issued to this client.
	issued := cl.oauthState
	cl.oauthState = ""
	if issued == "" || req.State != issued {
		span.SetAttributes(attribute.Bool("request.valid", false))
		logger.Warn().Bool("state_issued", issued != "").Msg("OAuth state mismatch")
		c.JSON(http.StatusBadRequest, gin.H{"error": "OAuth state mismatch"})
		return
	}
	span.SetAttributes(attribute.Bool("request.valid", true))

	session, err := cl.resolver.LoginWithGoogle(ctx, domain.Role(req.Role), req.Code)
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Str("role", req.Role).Msg("Google login failed")
		h.writeAuthError(c, err)
		return
	}

	logger.Info().Str("user_id", session.UserID).Str("role", string(session.Role)).Msg("Google login successful")
	c.JSON(http.StatusOK, sessionResponse(cl))
}

// Logout signs the client out.
func (h *Handler) Logout(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)
	cl := clientFrom(c)
	if cl == nil {
		c.JSON(http.StatusOK, domain.SessionResponse{Session: domain.LoggedOut(), Redirect: domain.RouteLogin})
		return
	}

	if err := cl.resolver.Logout(ctx); err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("Logout failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, sessionResponse(cl))
}

// Signup registers an account and files a pending signup request. The
// client stays signed out and is sent to the login page.
func (h *Handler) Signup(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)
	cl := clientFrom(c)

	var req domain.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.signup.Signup(ctx, req)
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Str("email", req.Email).Msg("Signup failed")

		var verr *logicv1.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed. Please check your input.", "fields": verr.Fields})
		case errors.Is(err, identity.ErrEmailInUse):
			c.JSON(http.StatusConflict, gin.H{"error": identity.ErrEmailInUse.Error()})
		case errors.Is(err, identity.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": identity.ErrWeakPassword.Error()})
		case errors.Is(err, identity.ErrInvalidEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": identity.ErrInvalidEmail.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	logger.Info().Str("user_id", id.UID).Str("role", req.Role).Msg("Signup request submitted")
	if cl == nil {
		c.JSON(http.StatusCreated, domain.SessionResponse{Session: domain.LoggedOut(), Redirect: domain.RouteLogin})
		return
	}
	cl.nav.Navigate(domain.RouteLogin)
	c.JSON(http.StatusCreated, sessionResponse(cl))
}

// Dashboard tells the browser which dashboard to show.
// GET /api/v1/dashboard
func (h *Handler) Dashboard(c *gin.Context) {
	session := domain.LoggedOut()
	if cl := clientFrom(c); cl != nil {
		session = cl.resolver.Session()
	}

	redirect := domain.RouteLogin
	if session.IsAuthenticated {
		redirect = domain.DashboardPath(session.Role)
	}
	c.JSON(http.StatusOK, domain.SessionResponse{Session: session, Redirect: redirect})
}

// ListMentors searches the mentor directory.
// GET /api/v1/mentors?q=<query>
func (h *Handler) ListMentors(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	mentors, err := h.mentors.Search(ctx, c.Query("q"))
	if err != nil {
		span.RecordError(err)
		pkgzerolog.FromContext(ctx).Error().Err(err).Msg("Mentor search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mentors": mentors})
}

// CreateMentor adds the signed-in user to the mentors collection.
func (h *Handler) CreateMentor(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)
	session := domain.LoggedOut()
	if cl := clientFrom(c); cl != nil {
		session = cl.resolver.Session()
	}
	if !session.IsAuthenticated {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication details are missing. Please log in again."})
		return
	}

	var req domain.CreateMentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mentor, err := h.mentors.Add(ctx, session.UserID, req.Name, session.Email)
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("Error adding mentor")

		var verr *logicv1.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed. Please check your input.", "fields": verr.Fields})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add mentor. Please try again."})
		return
	}

	logger.Info().Str("mentor_id", mentor.ID).Str("user_id", session.UserID).Msg("Mentor added")
	c.JSON(http.StatusCreated, mentor)
}

// SuggestTags returns AI-suggested profile tags for the given skills.
func (h *Handler) SuggestTags(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)

	var req domain.SuggestTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed. Please check your input.", "errors": gin.H{"skills": []string{err.Error()}}})
		return
	}

	tags, err := h.tags.Suggest(ctx, req.Skills)
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("Error generating profile tags")

		var verr *logicv1.ValidationError
		switch {
		case errors.As(err, &verr):
			fields := make(gin.H, len(verr.Fields))
			for k, v := range verr.Fields {
				fields[k] = []string{v}
			}
			c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed. Please check your input.", "errors": fields})
		case errors.Is(err, logicv1.ErrTagsDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": err.Error(), "errors": gin.H{"server": []string{err.Error()}}})
		case errors.Is(err, logicv1.ErrTagGeneration):
			c.JSON(http.StatusBadGateway, gin.H{"message": err.Error(), "errors": gin.H{"server": []string{"Could not generate tags from the AI service."}}})
		default:
			c.JSON(http.StatusBadGateway, gin.H{
				"message": "Failed to generate tags due to a server error. Please try again later.",
				"errors":  gin.H{"server": []string{err.Error()}},
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tags generated successfully!", "tags": tags})
}

// writeAuthError maps login failures to status codes. Provider messages are
// passed through verbatim.
func (h *Handler) writeAuthError(c *gin.Context, err error) {
	var authErr *logicv1.AuthenticationError
	switch {
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Message})
	case errors.Is(err, logicv1.ErrRoleRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Role is required for Google login."})
	case errors.Is(err, logicv1.ErrLookupFailed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Profile service unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
