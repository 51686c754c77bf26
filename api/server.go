// Package api exposes the fan and power commands over a local HTTP API for
// headless use.
package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/cyear/nuc-fan/controller"
	"github.com/cyear/nuc-fan/hardware"
	"github.com/cyear/nuc-fan/models"
	"github.com/cyear/nuc-fan/utils"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

// FanControl is the part of the fan controller driven by the API.
type FanControl interface {
	Start(data models.FanData) error
	Stop() <-chan struct{}
	GetPublicState() controller.PublicState
}

// PowerControl reads and writes the power limits.
type PowerControl interface {
	GetTdp() (models.Tdp, error)
	SetTdp(t models.Tdp) error
}

// Server holds the handlers' dependencies.
type Server struct {
	Fans      FanControl
	Power     PowerControl
	Regs      hardware.Transactor
	CurvePath string
}

//---
// Payloads
//---

type CurvePayload struct {
	models.FanData
}

func (p *CurvePayload) Bind(r *http.Request) error {
	return p.FanData.Validate()
}

type TdpPayload struct {
	models.Tdp
}

func (p *TdpPayload) Bind(r *http.Request) error {
	return nil
}

type StatusPayload struct {
	Running bool `json:"running"`
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/speeds", s.GetSpeeds)
	r.Get("/state", s.GetState)

	r.Route("/fan", func(r chi.Router) {
		r.Post("/start", s.StartFan)
		r.Post("/stop", s.StopFan)
	})

	r.Get("/tdp", s.GetTdp)
	r.Put("/tdp", s.PutTdp)

	r.Get("/curve", s.GetCurve)
	r.Put("/curve", s.PutCurve)

	return r
}

//---
// Views
//---

func (s *Server) GetSpeeds(w http.ResponseWriter, r *http.Request) {
	speeds, err := controller.GetFanSpeeds(s.Regs)
	if err != nil {
		render.Render(w, r, ErrHardware(err))
		return
	}
	render.JSON(w, r, speeds)
}

func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.Fans.GetPublicState())
}

// StartFan starts the loop with the curves in the body, or with the saved
// curves when the body is empty.
func (s *Server) StartFan(w http.ResponseWriter, r *http.Request) {
	var data models.FanData
	if r.ContentLength != 0 {
		payload := &CurvePayload{}
		if err := render.Bind(r, payload); err != nil {
			render.Render(w, r, ErrInvalidRequest(err))
			return
		}
		data = payload.FanData
	} else {
		saved, err := utils.LoadFanConfig(s.CurvePath)
		if err != nil {
			render.Render(w, r, curveLoadError(err))
			return
		}
		data = saved
	}

	if err := s.Fans.Start(data); err != nil {
		if errors.Is(err, models.ErrInvalidCurve) {
			render.Render(w, r, ErrInvalidRequest(err))
			return
		}
		render.Render(w, r, ErrHardware(err))
		return
	}
	render.JSON(w, r, StatusPayload{Running: true})
}

// StopFan returns once the loop is stopped; automatic mode is restored in
// the background.
func (s *Server) StopFan(w http.ResponseWriter, r *http.Request) {
	s.Fans.Stop()
	render.JSON(w, r, StatusPayload{Running: false})
}

func (s *Server) GetTdp(w http.ResponseWriter, r *http.Request) {
	tdp, err := s.Power.GetTdp()
	if err != nil {
		render.Render(w, r, ErrHardware(err))
		return
	}
	render.JSON(w, r, tdp)
}

func (s *Server) PutTdp(w http.ResponseWriter, r *http.Request) {
	payload := &TdpPayload{}
	if err := render.Bind(r, payload); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := s.Power.SetTdp(payload.Tdp); err != nil {
		if errors.Is(err, models.ErrTdpRange) {
			render.Render(w, r, ErrInvalidRequest(err))
			return
		}
		render.Render(w, r, ErrHardware(err))
		return
	}
	render.JSON(w, r, payload.Tdp)
}

func (s *Server) GetCurve(w http.ResponseWriter, r *http.Request) {
	data, err := utils.LoadFanConfig(s.CurvePath)
	if err != nil {
		render.Render(w, r, curveLoadError(err))
		return
	}
	render.JSON(w, r, data)
}

func (s *Server) PutCurve(w http.ResponseWriter, r *http.Request) {
	payload := &CurvePayload{}
	if err := render.Bind(r, payload); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := utils.SaveFanConfig(s.CurvePath, payload.FanData); err != nil {
		render.Render(w, r, &ErrResponse{
			Err:            err,
			HTTPStatusCode: http.StatusInternalServerError,
			StatusText:     "Could not save curve.",
			ErrorText:      err.Error(),
		})
		return
	}
	render.JSON(w, r, payload.FanData)
}

func curveLoadError(err error) render.Renderer {
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound(err)
	}
	return ErrInvalidRequest(err)
}
