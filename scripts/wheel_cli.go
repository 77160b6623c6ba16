package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"spinwin/internal/catalog"
	"spinwin/internal/config"
	"spinwin/internal/models"
	"spinwin/internal/render"
	"spinwin/internal/result"
	"spinwin/internal/upstream"
	"spinwin/internal/wheel"
)

func main() {
	action := flag.String("action", "layout", "layout|resolve|draw|wheel|qr")
	rewardID := flag.String("reward", "", "reward id to resolve (resolve, qr)")
	last := flag.Float64("last", 0, "rotation the wheel currently rests at")
	seed := flag.Uint("seed", 0, "rng seed for draw and mismatch fallback, 0 = random")
	out := flag.String("out", "", "png output path (wheel, qr)")
	size := flag.Int("size", 0, "png size in pixels")
	demo := flag.Bool("demo", false, "use the built-in demo catalog even when UPSTREAM_BASE_URL is set")
	flag.Parse()

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var source catalog.Source = catalog.NewStatic(catalog.DemoRewards())
	if !*demo && !cfg.Offline() {
		source = catalog.NewRemote(upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, zerolog.Nop()))
	}
	rewards, err := source.Fetch(ctx)
	if err != nil {
		exitErr(err)
		return
	}
	segments := wheel.Layout(rewards)

	var rng wheel.Source
	if *seed != 0 {
		rng = wheel.NewXorShift32(uint32(*seed))
	}
	resolver := wheel.NewResolver(rng, cfg.BaseRotationDeg)
	resolver.SetLastRotation(*last)

	switch strings.ToLower(*action) {
	case "layout":
		printJSON(segments)
	case "resolve":
		reward, ok := findReward(rewards, *rewardID)
		if !ok {
			exitErr(fmt.Errorf("reward %q not in catalog", *rewardID))
			return
		}
		printJSON(resolver.Resolve(models.OutcomeFromReward(reward), segments))
	case "draw":
		if len(segments) == 0 {
			exitErr(fmt.Errorf("catalog is empty"))
			return
		}
		target, outcome := resolver.Draw(segments)
		printJSON(map[string]interface{}{"target": target, "outcome": outcome})
	case "wheel":
		png, err := render.WheelPNG(segments, *last, *size)
		if err != nil {
			exitErr(err)
			return
		}
		writeOut(*out, png)
	case "qr":
		reward, ok := findReward(rewards, *rewardID)
		if !ok {
			exitErr(fmt.Errorf("reward %q not in catalog", *rewardID))
			return
		}
		outcome := models.OutcomeFromReward(reward)
		view := result.Render(&outcome, result.Options{SiteURL: cfg.SiteURL, ValidDays: cfg.PrizeValidDays})
		if view.QRPayload == "" {
			exitErr(fmt.Errorf("reward %q has no prize to redeem", *rewardID))
			return
		}
		png, err := render.QRPNG(view.QRPayload, *size)
		if err != nil {
			exitErr(err)
			return
		}
		writeOut(*out, png)
	default:
		exitErr(fmt.Errorf("unknown action %q", *action))
	}
}

func findReward(rewards []models.Reward, id string) (models.Reward, bool) {
	for _, r := range rewards {
		if r.ID == id {
			return r, true
		}
	}
	return models.Reward{}, false
}

func writeOut(path string, data []byte) {
	if path == "" {
		exitErr(fmt.Errorf("-out is required"))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		exitErr(err)
		return
	}
	printJSON(map[string]interface{}{"written": path, "bytes": len(data)})
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(os.Stdout, string(data))
}

func exitErr(err error) {
	_, _ = fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
