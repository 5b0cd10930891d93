package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/adapters/recorder"
	"github.com/pingu-73/telemetry-pipeline/internal/domain"
	"github.com/pingu-73/telemetry-pipeline/internal/wire"
)

// simulateCommand streams telemetry at a running pipeline: either a
// synthetic lap profile or a recorded session replayed with its original
// pacing.
func simulateCommand(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	target := fs.String("target", "127.0.0.1:20777", "UDP endpoint of the running pipeline")
	hz := fs.Int("hz", 500, "Packets per second for synthetic telemetry")
	laps := fs.Int("laps", 3, "Number of synthetic laps to stream")
	lapSeconds := fs.Float64("lap-seconds", 75, "Synthetic lap duration")
	car := fs.Uint("car", 44, "Car number stamped on synthetic packets")
	session := fs.String("session", "", "Replay a recorded session directory instead of generating laps")
	checksum := fs.Bool("checksum", true, "Append CRC-32 trailers to synthetic packets")
	if err := fs.Parse(args); err != nil {
		return err
	}

	conn, err := net.Dial("udp", *target)
	if err != nil {
		return fmt.Errorf("dial %s: %w", *target, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *session != "" {
		return replaySession(ctx, conn, *session)
	}
	return streamLaps(ctx, conn, uint8(*car), *hz, *laps, *lapSeconds, *checksum)
}

func streamLaps(ctx context.Context, conn net.Conn, car uint8, hz, laps int, lapSeconds float64, checksum bool) error {
	interval := time.Second / time.Duration(hz)
	samplesPerLap := int(lapSeconds * float64(hz))
	total := samplesPerLap * laps

	fmt.Printf("streaming %d laps (%d packets at %dHz) to %s\n", laps, total, hz, conn.RemoteAddr())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
	for seq := uint32(1); int(seq) <= total; seq++ {
		select {
		case <-ctx.Done():
			fmt.Printf("interrupted after %d packets\n", sent)
			return nil
		case <-ticker.C:
		}

		lapPos := float64(int(seq-1)%samplesPerLap) / float64(samplesPerLap)
		s := lapSample(car, seq, lapPos)
		if _, err := conn.Write(wire.Encode(s, checksum)); err != nil {
			return fmt.Errorf("send packet %d: %w", seq, err)
		}
		sent++
		if sent%(hz*10) == 0 {
			fmt.Printf("  %d packets sent, lap %d of %d\n", sent, int(seq-1)/samplesPerLap+1, laps)
		}
	}
	fmt.Printf("done: %d packets sent\n", sent)
	return nil
}

// lapSample shapes one reading from the lap position: two straights with
// heavy braking zones at the end of each, corners in between.
func lapSample(car uint8, seq uint32, lapPos float64) domain.Sample {
	// speed swings 90..330 km/h over four sectors per lap
	phase := lapPos * 4 * math.Pi
	speedF := 210 + 120*math.Sin(phase)
	accelerating := math.Cos(phase) > 0

	var throttle, brake float32
	if accelerating {
		throttle = float32(0.6 + 0.4*math.Abs(math.Cos(phase)))
	} else {
		brake = float32(math.Abs(math.Cos(phase)))
	}

	speed := uint16(speedF)
	gear := int8(2 + speedF/50)
	if gear > 8 {
		gear = 8
	}
	rpm := uint16(7000 + 5000*(speedF/330))
	drs := accelerating && speedF > 280

	// thermals follow load; crest slightly above the cooling limit once
	// per lap so critical promotion paths see real traffic
	water := int16(95 + 40*lapPos)
	oil := float32(4.0 + float64(rpm)/15000*2.0)

	prio := domain.ClassMedium
	switch {
	case brake > 0.9 || water > 128:
		prio = domain.ClassHigh
	case throttle < 0.7 && brake == 0:
		prio = domain.ClassLow
	}

	tyreBase := int16(80 + speed/18)
	return domain.Sample{
		CarID:          car,
		Seq:            seq,
		Captured:       time.Now().UTC(),
		Priority:       prio,
		SpeedKmh:       speed,
		RPM:            rpm,
		Gear:           gear,
		Throttle:       throttle,
		Brake:          brake,
		Steering:       float32(0.8 * math.Sin(phase/2)),
		DRSActive:      drs,
		PosX:           float32(1000 * math.Cos(2*math.Pi*lapPos)),
		PosY:           float32(600 * math.Sin(2*math.Pi*lapPos)),
		WaterTempC:     water,
		OilPressureBar: oil,
		FuelFlowKgH:    float32(throttle) * 100,
		TyreTempC:      [4]int16{tyreBase + 10, tyreBase + 10, tyreBase, tyreBase},
	}
}

// replaySession re-sends a recorded session, preserving the original
// inter-packet gaps.
func replaySession(ctx context.Context, conn net.Conn, dir string) error {
	rec, err := recorder.NewFileRecorder(recorder.Config{Dir: dir})
	if err != nil {
		return fmt.Errorf("open session %s: %w", dir, err)
	}
	defer rec.Close()

	fmt.Printf("replaying session %s to %s\n", dir, conn.RemoteAddr())

	var (
		sent     int
		prevRecv time.Time
	)
	err = rec.Iterate(func(recvAt time.Time, frame []byte) error {
		if !prevRecv.IsZero() {
			gap := recvAt.Sub(prevRecv)
			if gap > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(gap):
				}
			}
		}
		prevRecv = recvAt

		if _, err := conn.Write(frame); err != nil {
			return err
		}
		sent++
		return nil
	})
	if err != nil && ctx.Err() != nil {
		fmt.Printf("interrupted after %d packets\n", sent)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("done: %d packets replayed\n", sent)
	return nil
}
