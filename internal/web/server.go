package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conorfennell/flashback/internal/domain"
	"github.com/conorfennell/flashback/internal/study"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/yuin/goldmark"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

var funcs = template.FuncMap{
	"markdown": renderMarkdown,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Format("2006-01-02")
	},
	"grades": func() []domain.Grade {
		return []domain.Grade{
			domain.Blackout, domain.Incorrect, domain.IncorrectEasy,
			domain.CorrectDifficult, domain.CorrectHesitant, domain.Perfect,
		}
	},
}

// renderMarkdown renders card text as HTML. Raw HTML in the source is
// omitted.
func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

// sessionIdleTimeout is how long an edit session survives without a request.
const sessionIdleTimeout = 30 * time.Minute

// editSession guards a study.EditSession, which is not safe for concurrent
// use. lastUsed is guarded by Server.mu.
type editSession struct {
	mu sync.Mutex
	*study.EditSession
	lastUsed time.Time
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	svc       *study.Service
	router    *mux.Router
	templates *template.Template
	logger    *slog.Logger
	now       func() time.Time

	// At most one session per category is open; starting a new one replaces it.
	mu       sync.Mutex
	sessions map[uuid.UUID]*editSession
}

// NewServer creates and configures a new server.
func NewServer(svc *study.Service, logger *slog.Logger) (*Server, error) {
	tpl, err := template.New("").Funcs(funcs).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		svc:       svc,
		router:    mux.NewRouter(),
		templates: tpl,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[uuid.UUID]*editSession),
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to create sub-filesystem for static assets: %w", err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	s.router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", fileServer))
	s.router.Handle("/", fileServer).Methods(http.MethodGet)

	// Review loop
	s.router.HandleFunc("/deck", s.handleGetDeck()).Methods(http.MethodGet)
	s.router.HandleFunc("/review/next", s.handleGetNextReview()).Methods(http.MethodGet)
	s.router.HandleFunc("/review/{id:[0-9]+}/answer", s.handleShowAnswer()).Methods(http.MethodGet)
	s.router.HandleFunc("/review/{id:[0-9]+}", s.handlePostReview()).Methods(http.MethodPost)

	// Reordering
	s.router.HandleFunc("/categories/{id:[0-9]+}/questions", s.handleGetQuestions()).Methods(http.MethodGet)
	s.router.HandleFunc("/categories/{id:[0-9]+}/edit", s.handleBeginEdit()).Methods(http.MethodPost)
	s.router.HandleFunc("/edit/{session}/move", s.handleEditMove()).Methods(http.MethodPost)
	s.router.HandleFunc("/edit/{session}/delete", s.handleEditDelete()).Methods(http.MethodPost)
	s.router.HandleFunc("/edit/{session}/commit", s.handleEditCommit()).Methods(http.MethodPost)
	return nil
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	s.renderStatus(w, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("failed to render template", "template", name, "error", err)
	}
}

// fail maps domain errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, domain.ErrInvalidGrade):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrIndexOutOfRange):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func formInt(r *http.Request, key string) (int, error) {
	v, err := strconv.Atoi(r.PostFormValue(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

// handleGetDeck renders the deck view, showing the number of due questions.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dueQuestions, err := s.svc.ActiveDueToday(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		forecast, err := s.svc.Forecast(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.render(w, "deck", map[string]any{
			"DueCount":        len(dueQuestions),
			"HasDueQuestions": len(dueQuestions) > 0,
			"Forecast":        forecast,
		})
	}
}

// handleGetNextReview renders the front of the next due question.
func (s *Server) handleGetNextReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderNext(w, r)
	}
}

func (s *Server) renderNext(w http.ResponseWriter, r *http.Request) {
	next, ok, err := s.svc.NextDue(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		s.handleGetDeck()(w, r)
		return
	}
	s.render(w, "card_front", next)
}

// handleShowAnswer renders the back of a question with the grade buttons.
func (s *Server) handleShowAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			http.Error(w, "Invalid question ID", http.StatusBadRequest)
			return
		}
		q, err := s.svc.Question(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.render(w, "card_back", q)
	}
}

// handlePostReview grades a question and renders the next one.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			http.Error(w, "Invalid question ID", http.StatusBadRequest)
			return
		}
		grade, err := domain.ParseGrade(r.PostFormValue("grade"))
		if err != nil {
			http.Error(w, "Invalid grade", http.StatusBadRequest)
			return
		}
		if _, _, err := s.svc.Review(r.Context(), id, grade); err != nil {
			s.fail(w, r, err)
			return
		}
		s.renderNext(w, r)
	}
}

// handleGetQuestions renders a category's questions in order.
func (s *Server) handleGetQuestions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			http.Error(w, "Invalid category ID", http.StatusBadRequest)
			return
		}
		c, qs, err := s.svc.CategoryQuestions(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.render(w, "question_list", map[string]any{
			"Category":  c,
			"Questions": qs,
		})
	}
}

// handleBeginEdit opens a reorder session for a category.
func (s *Server) handleBeginEdit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			http.Error(w, "Invalid category ID", http.StatusBadRequest)
			return
		}
		es, err := s.svc.BeginEdit(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		sessionID := uuid.New()
		s.mu.Lock()
		now := s.now()
		for sid, open := range s.sessions {
			if now.Sub(open.lastUsed) > sessionIdleTimeout || open.Category().ID == id {
				delete(s.sessions, sid)
				s.logger.Info("edit session discarded", "session", sid, "category", open.Category().Name)
			}
		}
		s.sessions[sessionID] = &editSession{EditSession: es, lastUsed: now}
		s.mu.Unlock()

		s.logger.Info("edit session started", "session", sessionID, "category", es.Category().Name)
		w.Header().Set("Location", "/edit/"+sessionID.String())
		s.renderStatus(w, http.StatusCreated, "edit_session", sessionView(sessionID, es))
	}
}

// withSession looks up the edit session named in the path and runs fn while
// holding its lock.
func (s *Server) withSession(fn func(w http.ResponseWriter, r *http.Request, id uuid.UUID, es *study.EditSession)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(mux.Vars(r)["session"])
		if err != nil {
			http.Error(w, "Invalid session ID", http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		es, ok := s.sessions[id]
		if ok {
			now := s.now()
			if now.Sub(es.lastUsed) > sessionIdleTimeout {
				delete(s.sessions, id)
				ok = false
			} else {
				es.lastUsed = now
			}
		}
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}

		es.mu.Lock()
		defer es.mu.Unlock()
		fn(w, r, id, es.EditSession)
	}
}

// handleEditMove moves the question at index "from" to index "to".
func (s *Server) handleEditMove() http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, id uuid.UUID, es *study.EditSession) {
		from, err := formInt(r, "from")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		to, err := formInt(r, "to")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := es.Move(from, to); err != nil {
			s.fail(w, r, err)
			return
		}
		s.render(w, "edit_session", sessionView(id, es))
	})
}

// handleEditDelete deletes the question at "index".
func (s *Server) handleEditDelete() http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, id uuid.UUID, es *study.EditSession) {
		index, err := formInt(r, "index")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := es.Delete(r.Context(), index); err != nil {
			s.fail(w, r, err)
			return
		}
		s.render(w, "edit_session", sessionView(id, es))
	})
}

// handleEditCommit persists the session's order and closes it.
func (s *Server) handleEditCommit() http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, id uuid.UUID, es *study.EditSession) {
		qs, err := es.Commit(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}

		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()

		s.render(w, "question_list", map[string]any{
			"Category":  es.Category(),
			"Questions": qs,
		})
	})
}

func sessionView(id uuid.UUID, es *study.EditSession) map[string]any {
	return map[string]any{
		"Session":   id.String(),
		"Category":  es.Category(),
		"Questions": es.Questions(),
	}
}
