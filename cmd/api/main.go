package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"topic-tonic/internal/adapters/repo"
	"topic-tonic/internal/domain"
	"topic-tonic/internal/infra/cache"
	"topic-tonic/internal/infra/config"
	"topic-tonic/internal/infra/db"
	httpinfra "topic-tonic/internal/infra/http"
	"topic-tonic/internal/infra/metrics"
	"topic-tonic/internal/infra/queue"
	authusecase "topic-tonic/internal/usecase/auth"
	"topic-tonic/internal/usecase/engagement"
	"topic-tonic/internal/usecase/insights"
	"topic-tonic/internal/usecase/topics"
)

type systemClock struct {
	loc *time.Location
}

func (c systemClock) Now() time.Time { return time.Now().In(c.loc) }

func main() {
	cfg := config.Load()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.TZ).Msg("api: неизвестная таймзона")
	}
	clock := systemClock{loc: loc}

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	sessions := cache.NewRedisSessionStore(redisClient)

	var activityQueue domain.ActivityQueue
	if cfg.AMQPURL != "" {
		rabbit, err := queue.NewRabbitActivityQueue(cfg.AMQPURL, cfg.Queues.Activity)
		if err != nil {
			log.Fatal().Err(err).Msg("api: нет подключения к RabbitMQ")
		}
		defer rabbit.Close()
		activityQueue = rabbit
	} else {
		log.Warn().Msg("api: AMQP_URL не задан, события идут через Redis")
		activityQueue = queue.NewRedisActivityQueue(redisClient, cfg.Queues.Activity)
	}

	repoAdapter := repo.NewPostgres(pool, cfg.TZ)
	authService := authusecase.NewService(repoAdapter, sessions, activityQueue, cfg.Sessions.TTL)
	topicService := topics.NewService(repoAdapter, repoAdapter, repoAdapter, activityQueue, clock, cfg.Limits.TopicsPerPage)
	engagementService := engagement.NewService(repoAdapter, repoAdapter, repoAdapter, activityQueue, clock)
	insightsService := insights.NewService(repoAdapter, clock)

	server := httpinfra.NewServer(log.With().Str("component", "http").Logger())
	r := server.Router

	r.Post("/api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		user, err := authService.Register(r.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrEmailTaken):
				httpinfra.WriteError(w, http.StatusConflict, "email already registered")
			case errors.Is(err, authusecase.ErrNameRequired),
				errors.Is(err, authusecase.ErrEmailInvalid),
				errors.Is(err, authusecase.ErrPasswordTooShort):
				httpinfra.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			default:
				log.Error().Err(err).Msg("api: регистрация")
				httpinfra.WriteError(w, http.StatusInternalServerError, "registration failed")
			}
			return
		}
		httpinfra.WriteJSON(w, http.StatusCreated, userResponse{ID: user.ID, Name: user.Name, Email: user.Email})
	})

	r.Post("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		token, user, err := authService.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, authusecase.ErrInvalidCredentials) {
				httpinfra.WriteError(w, http.StatusUnauthorized, "invalid email or password")
				return
			}
			log.Error().Err(err).Msg("api: вход")
			httpinfra.WriteError(w, http.StatusInternalServerError, "login failed")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     httpinfra.SessionCookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(cfg.Sessions.TTL.Seconds()),
		})
		httpinfra.WriteJSON(w, http.StatusOK, loginResponse{
			Token: token,
			User:  userResponse{ID: user.ID, Name: user.Name, Email: user.Email},
		})
	})

	r.Group(func(protected chi.Router) {
		protected.Use(httpinfra.SessionAuthMiddleware(authService))

		protected.Post("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
			if err := authService.Logout(r.Context(), httpinfra.TokenFromRequest(r)); err != nil {
				log.Error().Err(err).Msg("api: выход")
				httpinfra.WriteError(w, http.StatusInternalServerError, "logout failed")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		protected.Get("/api/v1/dashboard", func(w http.ResponseWriter, r *http.Request) {
			all, err := topicService.Dashboard(r.Context())
			if err != nil {
				log.Error().Err(err).Msg("api: дашборд")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to load dashboard")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"topics": all})
		})

		protected.Get("/api/v1/topics", func(w http.ResponseWriter, r *http.Request) {
			user, _ := httpinfra.UserFromContext(r.Context())
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			result, err := topicService.ListOwn(r.Context(), user.ID, page)
			if err != nil {
				log.Error().Err(err).Msg("api: список тем")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to list topics")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, result)
		})

		protected.Post("/api/v1/topics", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			user, _ := httpinfra.UserFromContext(r.Context())
			var req topicRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			topic, err := topicService.Create(r.Context(), user.ID, req.Title, req.Body)
			if err != nil {
				switch {
				case errors.Is(err, topics.ErrTitleRequired), errors.Is(err, topics.ErrTitleTooLong):
					httpinfra.WriteError(w, http.StatusUnprocessableEntity, err.Error())
				default:
					log.Error().Err(err).Msg("api: создание темы")
					httpinfra.WriteError(w, http.StatusInternalServerError, "failed to create topic")
				}
				return
			}
			httpinfra.WriteJSON(w, http.StatusCreated, map[string]any{"id": topic.ID, "title": topic.Title})
		})

		protected.Get("/api/v1/topics/{id}", func(w http.ResponseWriter, r *http.Request) {
			user, _ := httpinfra.UserFromContext(r.Context())
			topicID, ok := pathID(w, r, "id")
			if !ok {
				return
			}
			detail, err := topicService.Show(r.Context(), topicID, user.ID)
			if err != nil {
				if errors.Is(err, domain.ErrTopicNotFound) {
					httpinfra.WriteError(w, http.StatusNotFound, "topic not found")
					return
				}
				log.Error().Err(err).Msg("api: карточка темы")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to load topic")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"topic": detail})
		})

		protected.Post("/api/v1/topics/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			user, _ := httpinfra.UserFromContext(r.Context())
			topicID, ok := pathID(w, r, "id")
			if !ok {
				return
			}
			var req commentRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			comment, err := engagementService.AddComment(r.Context(), topicID, user.ID, req.Body)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrTopicNotFound):
					httpinfra.WriteError(w, http.StatusNotFound, "topic not found")
				case errors.Is(err, engagement.ErrCommentEmpty), errors.Is(err, engagement.ErrCommentTooLong):
					httpinfra.WriteError(w, http.StatusUnprocessableEntity, err.Error())
				default:
					log.Error().Err(err).Msg("api: добавление комментария")
					httpinfra.WriteError(w, http.StatusInternalServerError, "failed to add comment")
				}
				return
			}
			httpinfra.WriteJSON(w, http.StatusCreated, map[string]any{"id": comment.ID})
		})

		protected.Delete("/api/v1/topics/{id}/comments/{commentID}", func(w http.ResponseWriter, r *http.Request) {
			user, _ := httpinfra.UserFromContext(r.Context())
			topicID, ok := pathID(w, r, "id")
			if !ok {
				return
			}
			commentID, ok := pathID(w, r, "commentID")
			if !ok {
				return
			}
			err := engagementService.DeleteComment(r.Context(), topicID, commentID, user.ID)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrCommentNotFound):
					httpinfra.WriteError(w, http.StatusNotFound, "comment not found")
				case errors.Is(err, engagement.ErrNotCommentAuthor):
					httpinfra.WriteError(w, http.StatusForbidden, "only the author can delete a comment")
				default:
					log.Error().Err(err).Msg("api: удаление комментария")
					httpinfra.WriteError(w, http.StatusInternalServerError, "failed to delete comment")
				}
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		protected.Post("/api/v1/topics/{id}/likes", func(w http.ResponseWriter, r *http.Request) {
			user, _ := httpinfra.UserFromContext(r.Context())
			topicID, ok := pathID(w, r, "id")
			if !ok {
				return
			}
			if err := engagementService.Like(r.Context(), topicID, user.ID); err != nil {
				if errors.Is(err, domain.ErrTopicNotFound) {
					httpinfra.WriteError(w, http.StatusNotFound, "topic not found")
					return
				}
				log.Error().Err(err).Msg("api: лайк")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to like topic")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		protected.Delete("/api/v1/topics/{id}/likes", func(w http.ResponseWriter, r *http.Request) {
			user, _ := httpinfra.UserFromContext(r.Context())
			topicID, ok := pathID(w, r, "id")
			if !ok {
				return
			}
			if err := engagementService.Unlike(r.Context(), topicID, user.ID); err != nil {
				log.Error().Err(err).Msg("api: снятие лайка")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to unlike topic")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		protected.Get("/api/v1/insights", func(w http.ResponseWriter, r *http.Request) {
			user, _ := httpinfra.UserFromContext(r.Context())
			snapshot, err := insightsService.GetSnapshot(r.Context(), user.ID)
			if err != nil {
				log.Error().Err(err).Int64("user", user.ID).Msg("api: аналитика")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to build insights")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, snapshot)
		})
	})

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), ":"+strconv.Itoa(cfg.MetricsPort))
	go func() {
		if err := server.Start(":" + strconv.Itoa(cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpinfra.WriteError(w, http.StatusNotFound, "not found")
		return 0, false
	}
	return id, true
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type topicRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type commentRequest struct {
	Body string `json:"body"`
}
