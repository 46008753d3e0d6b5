package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/libero/internal/adapters/http/api"
	service "github.com/okian/libero/internal/app"
	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/report"
	"github.com/okian/libero/internal/domain/stats"
	"github.com/okian/libero/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Seq     uint64 `json:"seq"`
}

func newMux(svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func roster(prefix string) string {
	var b strings.Builder
	for i := 1; i <= 7; i++ {
		if i > 1 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"id":"%s%d","name":"Player %s%d","number":%d}`, prefix, i, prefix, i, i)
	}
	return b.String()
}

func createBody(id string) string {
	return fmt.Sprintf(`{"id":%q,"name":"Cup final","played_at":"2026-05-01T18:00:00Z","teams":[
		{"name":"Lions","players":[%s]},
		{"name":"Tigers","players":[%s]}]}`, id, roster("a"), roster("b"))
}

const setStartBody = `{"type":"set-start","team":"A","lineup":{"a":["a1","a2","a3","a4","a5","a6"],"b":["b1","b2","b3","b4","b5","b6"]}}`

func decodeBody[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func TestServer(t *testing.T) {
	Convey("Given an API server over a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2), service.WithClock(func() time.Time {
			return time.Date(2026, 5, 1, 18, 5, 0, 0, time.UTC)
		}))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		mux := newMux(svc)

		Convey("When the health endpoint is scraped", func() {
			w := do(mux, http.MethodGet, "/healthz", "")

			Convey("Then it serves the Prometheus exposition", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "libero_")
			})
		})

		Convey("When creating a match", func() {
			w := do(mux, http.MethodPost, "/matches", createBody("final"))

			Convey("Then it is created", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Header().Get("Location"), ShouldEqual, "/matches/final")
				info := decodeBody[service.MatchInfo](w)
				So(info.Summary.Teams, ShouldResemble, [2]string{"Lions", "Tigers"})
			})

			Convey("Then creating it again conflicts", func() {
				w := do(mux, http.MethodPost, "/matches", createBody("final"))
				So(w.Code, ShouldEqual, http.StatusConflict)
			})

			Convey("Then it is listed", func() {
				w := do(mux, http.MethodGet, "/matches", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"id":"final"`)
			})

			Convey("And a set is started", func() {
				w := do(mux, http.MethodPost, "/matches/final/events", setStartBody)
				So(w.Code, ShouldEqual, http.StatusCreated)
				e := decodeBody[model.Event](w)
				So(e.Seq, ShouldEqual, 1)
				So(e.Set, ShouldEqual, 1)

				Convey("When points are recorded", func() {
					w := do(mux, http.MethodPost, "/matches/final/events", `{"type":"point","team":"B","player":"b4","skill":"attack","outcome":"#"}`)
					So(w.Code, ShouldEqual, http.StatusCreated)
					stored := decodeBody[model.Event](w)

					Convey("Then the event comes back stamped", func() {
						So(stored.Seq, ShouldEqual, 2)
						So(stored.Serving, ShouldEqual, model.SideA)
						So(stored.Phase, ShouldEqual, model.PhaseSideOut)
						So(stored.Timestamp.Equal(time.Date(2026, 5, 1, 18, 5, 0, 0, time.UTC)), ShouldBeTrue)
					})

					Convey("Then the match summary reflects it", func() {
						w := do(mux, http.MethodGet, "/matches/final", "")
						info := decodeBody[service.MatchInfo](w)
						So(info.Sets[0].Score, ShouldResemble, [2]int{0, 1})
						So(info.Summary.Serving, ShouldEqual, model.SideB)
					})

					Convey("Then the stats credit the player", func() {
						w := do(mux, http.MethodGet, "/matches/final/stats", "")
						So(w.Code, ShouldEqual, http.StatusOK)
						rep := decodeBody[stats.Report](w)
						So(rep.Players["b4"].Points, ShouldEqual, 1)
					})

					Convey("Then events can be filtered", func() {
						w := do(mux, http.MethodGet, "/matches/final/events?type=point&player=b4", "")
						So(w.Code, ShouldEqual, http.StatusOK)
						So(strings.Count(w.Body.String(), `"seq"`), ShouldEqual, 1)
					})

					Convey("Then the report carries the selection and the set scores", func() {
						w := do(mux, http.MethodGet, "/matches/final/report?set=1&type=point", "")
						So(w.Code, ShouldEqual, http.StatusOK)
						rep := decodeBody[report.FilteredReport](w)
						So(rep.MatchID, ShouldEqual, "final")
						So(rep.Sets, ShouldHaveLength, 1)
					})
				})

				Convey("When a point names an unknown player", func() {
					w := do(mux, http.MethodPost, "/matches/final/events", `{"type":"point","team":"A","player":"zz"}`)

					Convey("Then it is rejected with 422 and the offending seq", func() {
						So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
						body := decodeBody[errorBody](w)
						So(body.Code, ShouldEqual, "unknown_player")
						So(body.Seq, ShouldEqual, 2)
					})
				})

				Convey("When a substitution brings on a player already on court", func() {
					w := do(mux, http.MethodPost, "/matches/final/events", `{"type":"substitution","team":"A","player":"a1","incoming":"a2"}`)
					So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				})

				Convey("When the set is conceded and another point arrives", func() {
					w := do(mux, http.MethodPost, "/matches/final/events", `{"type":"set-end","team":"B"}`)
					So(w.Code, ShouldEqual, http.StatusCreated)
					w = do(mux, http.MethodPost, "/matches/final/events", `{"type":"point","team":"A","set":1}`)

					Convey("Then it conflicts with set_already_closed", func() {
						So(w.Code, ShouldEqual, http.StatusConflict)
						So(decodeBody[errorBody](w).Code, ShouldEqual, "set_already_closed")
					})
				})

				Convey("When a submission is retried with the same Idempotency-Key", func() {
					body := `{"type":"point","team":"A"}`
					first := do(mux, http.MethodPost, "/matches/final/events", body, api.IdempotencyHeader, "tap-7")
					second := do(mux, http.MethodPost, "/matches/final/events", body, api.IdempotencyHeader, "tap-7")

					Convey("Then both responses carry the same event", func() {
						So(first.Code, ShouldEqual, http.StatusCreated)
						So(second.Code, ShouldEqual, http.StatusCreated)
						So(bytes.Equal(first.Body.Bytes(), second.Body.Bytes()), ShouldBeTrue)
						l, _ := svc.Ledger("final")
						So(l.Len(), ShouldEqual, 2)
					})
				})
			})
		})

		Convey("When the body is malformed", func() {
			w := do(mux, http.MethodPost, "/matches", `{"teams":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody[errorBody](w).Code, ShouldEqual, "bad_request")
		})

		Convey("When the body carries unknown fields", func() {
			w := do(mux, http.MethodPost, "/matches", `{"colour":"red"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the rosters are too short", func() {
			w := do(mux, http.MethodPost, "/matches", `{"teams":[{"players":[{"id":"x"}]},{"players":[]}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the event type is unknown", func() {
			_ = do(mux, http.MethodPost, "/matches", createBody("m"))
			w := do(mux, http.MethodPost, "/matches/m/events", `{"type":"timeout"}`)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(decodeBody[errorBody](w).Code, ShouldEqual, "invalid_event_sequence")
		})

		Convey("When the filter is invalid", func() {
			_ = do(mux, http.MethodPost, "/matches", createBody("m"))
			w := do(mux, http.MethodGet, "/matches/m/report?rotation=9", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the match does not exist", func() {
			for _, path := range []string{"/matches/nope", "/matches/nope/events", "/matches/nope/stats", "/matches/nope/report"} {
				w := do(mux, http.MethodGet, path, "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
			}
			w := do(mux, http.MethodPost, "/matches/nope/events", setStartBody)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the service stats are requested", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("When a route does not exist", func() {
			w := do(mux, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
