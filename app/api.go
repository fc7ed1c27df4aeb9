package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"schedpush/config"
	"schedpush/lib"
	"schedpush/lib/schedule"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service) http.Handler {
	ctrl := &controller{log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/schedule", ctrl.currentSchedule)
		r.Get("/changelog", ctrl.changelog)

		r.Route("/push", func(r chi.Router) {
			r.Get("/vapid-key", ctrl.vapidKey)
			r.Post("/subscribe", ctrl.subscribe)
			r.Delete("/subscribe", ctrl.unsubscribe)

			r.Group(func(r chi.Router) {
				if creds := cfg.GetCreds(); len(creds) > 0 {
					r.Use(middleware.BasicAuth("schedpush", creds))
				} else {
					log.Sugar().Info("Auth is disabled since no credentials are defined")
				}
				r.Get("/check", ctrl.runCheck)
				r.Get("/subscriptions", ctrl.listSubscriptions)
			})
		})
	})

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"*"},
	}).Handler(r)
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		return
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(b)
	}
}

type subscribeRequest struct {
	Subscription struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	} `json:"subscription"`
	Filters *schedule.Filters `json:"filters"`
}

func (ctrl *controller) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctrl.reject(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	filters := schedule.Filters{}
	if req.Filters != nil {
		filters = *req.Filters
	}

	err := ctrl.svc.Subscribe(ctx,
		req.Subscription.Endpoint,
		req.Subscription.Keys.P256dh,
		req.Subscription.Keys.Auth,
		filters,
	)
	if errors.Is(err, lib.ErrInvalidSubscription) {
		ctrl.reject(w, http.StatusBadRequest, err)
		return
	} else if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"success": true})
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (ctrl *controller) unsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctrl.reject(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	err := ctrl.svc.Unsubscribe(ctx, req.Endpoint)
	if errors.Is(err, lib.ErrInvalidSubscription) {
		ctrl.reject(w, http.StatusBadRequest, err)
		return
	} else if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"success": true})
}

func (ctrl *controller) vapidKey(w http.ResponseWriter, r *http.Request) {
	ctrl.resolve(w, http.StatusOK, map[string]string{"public_key": ctrl.svc.VAPIDPublicKey()})
}

func (ctrl *controller) currentSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := ctrl.svc.CurrentSchedule(ctx)
	if err != nil {
		ctrl.reject(w, http.StatusBadGateway, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, records)
}

func (ctrl *controller) changelog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := ctrl.svc.RecentChanges(ctx, limit)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FromMany[ChangeLogView](entries))
}

func (ctrl *controller) runCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := ctrl.svc.RunCheck(ctx)
	if err != nil {
		ctrl.log.Sugar().Errorw("Schedule check failed", "err", err)
		ctrl.resolve(w, http.StatusInternalServerError, map[string]any{
			"status": result.Status,
			"error":  err.Error(),
		})
		return
	}
	ctrl.resolve(w, http.StatusOK, result)
}

func (ctrl *controller) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subs, err := ctrl.svc.Subscriptions(ctx)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FromMany[SubscriptionView](subs))
}
