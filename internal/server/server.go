package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tracker/internal/domain/errors"
	"tracker/internal/domain/models"
	"tracker/internal/ratelimit"
	"tracker/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type TaskAPI struct {
	httpSrv  *http.Server
	accounts *service.AccountService
	tasks    *service.TaskService
	photos   *service.PhotoService
	tokens   *TokenManager
	limiter  ratelimit.Limiter
	logger   zerolog.Logger
	maxPhoto int64
}

// NewTaskAPI wires the services on top of store. limiter may be nil, in
// which case the account endpoints are not throttled.
func NewTaskAPI(cfg *Config, logger zerolog.Logger, store service.Store, limiter ratelimit.Limiter) *TaskAPI {
	if cfg == nil || store == nil {
		return nil
	}

	api := &TaskAPI{
		httpSrv:  &http.Server{Addr: cfg.ListenAddr()},
		accounts: service.NewAccountService(logger, store),
		tasks:    service.NewTaskService(logger, store),
		photos:   service.NewPhotoService(logger, store, cfg.MaxPhotoSize),
		tokens:   NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		limiter:  limiter,
		logger:   logger.With().Str("component", "http").Logger(),
		maxPhoto: cfg.MaxPhotoSize,
	}
	if api.maxPhoto <= 0 {
		api.maxPhoto = service.DefaultMaxPhotoSize
	}
	api.configRoutes()
	return api
}

func (api *TaskAPI) Handler() http.Handler {
	return api.httpSrv.Handler
}

func (api *TaskAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}
	api.logger.Info().
		Str("addr", api.httpSrv.Addr).
		Msg("http server listening")
	if err := api.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (api *TaskAPI) Shutdown(ctx context.Context) error {
	return api.httpSrv.Shutdown(ctx)
}

func (api *TaskAPI) configRoutes() {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(
		gin.Recovery(),
		RequestID(),
		RequestLogger(api.logger),
		GzipRequestDecompress(),
		GzipResponseCompress(),
	)

	router.NoMethod(func(ctx *gin.Context) {
		ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})
	router.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	id := router.Group("/api/id")
	if api.limiter != nil {
		id.Use(RateLimit(api.limiter, "auth", api.logger))
	}
	{
		id.POST("/signup", api.signup)
		id.POST("/signin", api.signin)
	}

	authed := router.Group("/api", api.requireUser)
	{
		authed.GET("/id/me", api.me)
		authed.GET("/home", api.home)
		authed.POST("/tasks", api.addTask)
		authed.DELETE("/tasks/:taskID", api.deleteTask)
		authed.POST("/tasks/:taskID/photo", api.uploadPhoto)
		authed.GET("/tasks/:taskID/photo", api.hasPhoto)
		authed.GET("/photos/:photoID", api.getPhoto)
	}

	api.httpSrv.Handler = router
}

func (api *TaskAPI) requireUser(ctx *gin.Context) {
	header := ctx.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errors.ErrUnauthorized.Error()})
		return
	}

	userID, err := api.tokens.Parse(token)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errors.ErrUnauthorized.Error()})
		return
	}

	user, err := api.accounts.User(ctx.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errors.ErrUnauthorized.Error()})
			return
		}
		api.writeError(ctx, err)
		ctx.Abort()
		return
	}

	ctx.Set(userKey, user)
	ctx.Next()
}

func actingUser(ctx *gin.Context) *models.User {
	return ctx.MustGet(userKey).(*models.User)
}

func (api *TaskAPI) signup(ctx *gin.Context) {
	var req models.SignupRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}

	user, err := api.accounts.Signup(ctx.Request.Context(), req)
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	api.respondWithToken(ctx, http.StatusCreated, user)
}

func (api *TaskAPI) signin(ctx *gin.Context) {
	var req models.SigninRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}

	user, err := api.accounts.Signin(ctx.Request.Context(), req)
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	api.respondWithToken(ctx, http.StatusOK, user)
}

func (api *TaskAPI) respondWithToken(ctx *gin.Context, status int, user *models.User) {
	token, expiresAt, err := api.tokens.Issue(user)
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	ctx.JSON(status, models.SigninResponse{
		Username:  user.Username,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func (api *TaskAPI) me(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"user": actingUser(ctx)})
}

func (api *TaskAPI) home(ctx *gin.Context) {
	items, err := api.tasks.Home(ctx.Request.Context(), actingUser(ctx).ID)
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, items)
}

func (api *TaskAPI) addTask(ctx *gin.Context) {
	var req models.AddTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}

	task, err := api.tasks.AddTask(ctx.Request.Context(), req, actingUser(ctx))
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"task": task})
}

func (api *TaskAPI) deleteTask(ctx *gin.Context) {
	taskID, ok := parseTaskID(ctx)
	if !ok {
		return
	}

	if err := api.tasks.DeleteTask(ctx.Request.Context(), taskID, actingUser(ctx)); err != nil {
		api.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

func (api *TaskAPI) uploadPhoto(ctx *gin.Context) {
	taskID, ok := parseTaskID(ctx)
	if !ok {
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}
	if file.Size > api.maxPhoto {
		api.writeError(ctx, errors.ErrPhotoTooLarge)
		return
	}

	f, err := file.Open()
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, api.maxPhoto+1))
	if err != nil {
		api.writeError(ctx, err)
		return
	}

	photo, err := api.photos.Upload(ctx.Request.Context(), taskID, actingUser(ctx), data)
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"photo": photo})
}

func (api *TaskAPI) hasPhoto(ctx *gin.Context) {
	taskID, ok := parseTaskID(ctx)
	if !ok {
		return
	}

	has, err := api.photos.HasPhoto(ctx.Request.Context(), taskID, actingUser(ctx))
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"hasPhoto": has})
}

func (api *TaskAPI) getPhoto(ctx *gin.Context) {
	photo, err := api.photos.Get(ctx.Request.Context(), ctx.Param("photoID"), actingUser(ctx))
	if err != nil {
		api.writeError(ctx, err)
		return
	}
	ctx.Data(http.StatusOK, photo.ContentType, photo.Data)
}

func parseTaskID(ctx *gin.Context) (int64, bool) {
	taskID, err := strconv.ParseInt(ctx.Param("taskID"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return taskID, true
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{errors.ErrTaskNameEmpty, http.StatusBadRequest},
	{errors.ErrTaskNameTooShort, http.StatusBadRequest},
	{errors.ErrInvalidUsername, http.StatusBadRequest},
	{errors.ErrInvalidPassword, http.StatusBadRequest},
	{errors.ErrValidationFailed, http.StatusBadRequest},
	{errors.ErrPhotoEmpty, http.StatusBadRequest},
	{errors.ErrTaskExists, http.StatusConflict},
	{errors.ErrUserAlreadyExists, http.StatusConflict},
	{errors.ErrTaskNotFound, http.StatusNotFound},
	{errors.ErrPhotoNotFound, http.StatusNotFound},
	{errors.ErrForbidden, http.StatusForbidden},
	{errors.ErrInvalidCredentials, http.StatusUnauthorized},
	{errors.ErrPhotoTooLarge, http.StatusRequestEntityTooLarge},
}

func (api *TaskAPI) writeError(ctx *gin.Context, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			ctx.JSON(e.status, gin.H{"error": e.err.Error()})
			return
		}
	}

	api.logger.Error().
		Err(err).
		Str("path", ctx.FullPath()).
		Str("request_id", ctx.GetString(requestIDKey)).
		Msg("request failed")
	ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
}
