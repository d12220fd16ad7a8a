package app

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/smartspend/smartspend/pkg/user"
)

const userIdHeader = "X-User-Id"

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router) {
	r.Use(requestLogging)
	r.Use(userPropagation)
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		log.Debugf("%s %s", req.Method, req.URL.Path)
		next.ServeHTTP(w, req)
	})
}

// userPropagation puts the caller's id into the request context. The header wins over the
// userId query parameter.
func userPropagation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userId := req.Header.Get(userIdHeader)
		if userId == "" {
			userId = req.URL.Query().Get("userId")
		}
		ctx := req.Context()
		if userId != "" {
			log.Tracef("request from user %s", userId)
			ctx = user.WithId(ctx, userId)
		}
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}
