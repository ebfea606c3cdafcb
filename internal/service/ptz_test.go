package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edirooss/ptz-server/internal/device"
	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"github.com/edirooss/ptz-server/internal/infrastructure/tourmgr"
	"go.uber.org/zap/zaptest"
)

func setupService(t *testing.T) (*PTZService, *device.Registry) {
	t.Helper()
	log := zaptest.NewLogger(t)
	reg := device.NewRegistry(log, device.Options{Tours: tourmgr.Options{IdleBackoff: 10 * time.Millisecond}})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := reg.StopAll(ctx); err != nil {
			t.Errorf("StopAll() error = %v", err)
		}
	})
	return NewPTZService(log, reg), reg
}

var cam = device.Identity{Address: "http://192.168.1.20", Username: "admin", Password: "admin"}

func TestServiceResolvesSameDevice(t *testing.T) {
	svc, reg := setupService(t)

	if _, err := svc.AbsoluteMove(cam, ptz.Vector{Pan: 0.4}, 0); err != nil {
		t.Fatal(err)
	}
	// Same device, different password and cosmetic address.
	again := device.Identity{Address: "http://192.168.1.20/", Username: "admin", Password: "other"}
	st, err := svc.GetStatus(again)
	if err != nil {
		t.Fatal(err)
	}
	if st.Position.Pan != 0.4 {
		t.Fatalf("GetStatus() pan = %v, want 0.4 from the same device", st.Position.Pan)
	}
	if reg.Len() != 1 {
		t.Fatalf("registry has %d devices, want 1", reg.Len())
	}

	info1, _ := svc.GetDeviceInformation(cam)
	info2, _ := svc.GetDeviceInformation(again)
	if info1 != info2 {
		t.Errorf("device info differs: %+v vs %+v", info1, info2)
	}
}

func TestServiceRejectsMissingAddress(t *testing.T) {
	svc, _ := setupService(t)
	if _, err := svc.GetStatus(device.Identity{Username: "admin"}); !errors.Is(err, ptz.ErrInvalidArgument) {
		t.Fatalf("GetStatus() error = %v, want invalid argument", err)
	}
}

func TestServiceTourFlow(t *testing.T) {
	svc, _ := setupService(t)

	p1, err := svc.SetPreset(cam, "", "left", &ptz.Vector{Pan: -0.5})
	if err != nil {
		t.Fatal(err)
	}
	p2, err := svc.SetPreset(cam, "", "right", &ptz.Vector{Pan: 0.5})
	if err != nil {
		t.Fatal(err)
	}

	tour, err := svc.CreateTour(cam, device.TourSpec{
		Name: "sweep",
		Steps: []ptz.TourStep{
			{PresetToken: p1.Token, Dwell: 10 * time.Millisecond},
			{PresetToken: p2.Token, Dwell: 10 * time.Millisecond},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.OperateTour(cam, tour.Token, ptz.ActionStart); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err := svc.TourStatus(cam, tour.Token)
		if err != nil {
			t.Fatal(err)
		}
		if st.Passes >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("tour never completed a pass: %+v", st)
		}
		time.Sleep(2 * time.Millisecond)
	}

	st, err := svc.OperateTour(cam, tour.Token, ptz.ActionStop)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != ptz.TourStopping && st.State != ptz.TourStopped {
		t.Errorf("state after stop = %q", st.State)
	}

	evs, err := svc.TourEvents(cam, tour.Token, 0)
	if err != nil || len(evs) == 0 {
		t.Fatalf("TourEvents() = %d events, %v", len(evs), err)
	}
	if _, err := svc.OperateTour(cam, "tour_404", ptz.ActionStart); !errors.Is(err, ptz.ErrNotFound) {
		t.Errorf("unknown tour error = %v", err)
	}
}
