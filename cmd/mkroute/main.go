// Command mkroute converts CAN bus CSV captures and dashboard videos into
// segmented routes a bus-trace viewer can stream and replay in sync.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/banshee-data/busroute/internal/canlog"
	"github.com/banshee-data/busroute/internal/config"
	"github.com/banshee-data/busroute/internal/route"
	"github.com/banshee-data/busroute/internal/routedb"
	"github.com/banshee-data/busroute/internal/video"
)

var (
	jobsPath   = flag.String("jobs", "", "YAML file listing routes to produce")
	dataDir    = flag.String("data", "", "Root output directory for routes")
	policyName = flag.String("policy", "duration", "Segmentation policy: duration or size")
	sizeLimit  = flag.Int("size-limit", route.DefaultSizeLimit, "Uncompressed segment byte threshold (size policy)")
	dbPath     = flag.String("db", "", "Route index database (default <data>/routes.db)")
	parallel   = flag.Int("parallel", 1, "Number of routes to encode concurrently")
	strict     = flag.Bool("strict", false, "Exit nonzero if any route fails")
	skipVideo  = flag.Bool("skip-video", false, "Skip transcoding video artifacts")
	listRoutes = flag.Bool("list", false, "List recorded routes and exit")
)

func main() {
	flag.Parse()

	if *dataDir == "" {
		log.Fatal("-data directory is required")
	}
	if *dbPath == "" {
		*dbPath = filepath.Join(*dataDir, "routes.db")
	}

	if *listRoutes {
		if err := printRoutes(*dbPath); err != nil {
			log.Fatalf("failed to list routes: %v", err)
		}
		return
	}

	if *jobsPath == "" {
		log.Fatal("-jobs file is required")
	}
	jobs, err := config.LoadJobs(*jobsPath)
	if err != nil {
		log.Fatalf("failed to load jobs: %v", err)
	}

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	db, err := routedb.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open route index: %v", err)
	}
	defer db.Close()

	failed := runJobs(jobs, db)
	if failed > 0 {
		log.Printf("%d of %d routes failed", failed, len(jobs))
		if *strict {
			os.Exit(1)
		}
	}
}

// runJobs encodes every job, at most -parallel at a time. Routes share no
// mutable state, so the only coordination is the route index database.
func runJobs(jobs []config.Job, db *routedb.DB) int {
	sem := make(chan struct{}, max(*parallel, 1))
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(job config.Job) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := processRoute(job, db); err != nil {
				log.Printf("route for %s failed: %v", job.LogFile, err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(job)
	}
	wg.Wait()
	return failed
}

func processRoute(job config.Job, db *routedb.DB) error {
	policy, err := buildPolicy()
	if err != nil {
		return err
	}

	// Read and sort the whole capture before any output exists: an
	// empty or malformed log must not leave a route directory behind.
	frames, err := canlog.ReadFile(job.LogFile)
	if err != nil {
		return err
	}

	routeName, err := route.RouteName(job.LogFile, policy.Manifest())
	if err != nil {
		return err
	}
	log.Printf("generating route %s from %s (%d frames)...", routeName, job.LogFile, len(frames))

	runner := video.ExecRunner{}
	var videoLen float64
	if policy.IndexFrames() {
		videoLen, err = video.Duration(runner, job.Video)
		if err != nil {
			return err
		}
		log.Printf("video %s length %.2fs", job.Video, videoLen)
	}

	enc := route.NewEncoder(route.Options{
		DataDir:        *dataDir,
		RouteName:      routeName,
		Policy:         policy,
		Sync:           job.Sync,
		VideoDurationS: videoLen,
		Car:            job.Car,
		CarDetails:     job.CarDetails,
	})
	res, err := enc.Encode(frames)
	if err != nil {
		return err
	}
	log.Printf("route %s: wrote %d segments (%s policy)", res.RouteName, res.Segments, res.Policy)

	if !*skipVideo {
		if err := writeVideos(runner, job.Video, res); err != nil {
			return err
		}
	}

	// Recorded last: a route that failed anywhere above must not appear
	// in the index.
	return db.RecordRoute(res.RouteName, res.Policy, res.Segments, res.Dropped)
}

// writeVideos cuts the companion video artifacts for a flushed route:
// one 60 s clip per segment under the duration policy, one continuous
// stream under the size policy.
func writeVideos(runner video.Runner, src string, res *route.Result) error {
	tc := video.NewTranscoder(runner)

	if res.Policy == "size" {
		return tc.Continuous(src, filepath.Join(res.RouteDir, route.VideoFileName))
	}

	for idx := 0; idx < res.Segments; idx++ {
		dst := filepath.Join(fmt.Sprintf("%s--%d", res.RouteDir, idx), route.VideoFileName)
		err := tc.Segment(src, dst, idx)
		if errors.Is(err, video.ErrPastEndOfVideo) {
			// CAN log runs longer than the video; the remaining
			// segments have no clip.
			log.Printf("route %s: past end of input video at segment %d", res.RouteName, idx)
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func buildPolicy() (route.SegmentPolicy, error) {
	switch *policyName {
	case "duration":
		return route.DurationPolicy{}, nil
	case "size":
		return route.SizePolicy{Limit: *sizeLimit}, nil
	}
	return nil, fmt.Errorf("unknown policy %q (want duration or size)", *policyName)
}

func printRoutes(dbPath string) error {
	db, err := routedb.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	routes, err := db.ListRoutes()
	if err != nil {
		return err
	}
	if len(routes) == 0 {
		fmt.Println("no routes recorded")
		return nil
	}
	for _, r := range routes {
		fmt.Printf("%s  policy=%s segments=%d dropped=%d created=%s\n",
			r.Name, r.Policy, r.Segments, r.Dropped, r.Created.Format("2006-01-02 15:04:05"))
	}
	return nil
}
