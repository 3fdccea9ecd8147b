package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gamplo/gamplo-go/internal/bus"
	"github.com/gamplo/gamplo-go/internal/obs"
	"github.com/gamplo/gamplo-go/pkg/gamplo"
	"github.com/gamplo/gamplo-go/pkg/model"
	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"golang.org/x/sync/errgroup"
)

var (
	errShutdown    = errors.New("shutdown signal")
	errStdinClosed = errors.New("stdin closed")
)

func main() {
	roomsFlag := flag.String("rooms", "", "Comma separated chat room ids to join")
	sendRoom := flag.Int64("send-room", 0, "Room that stdin lines are posted to (0=first joined room)")
	token := flag.String("gamplo_token", "", "Platform token (default: GAMPLO_TOKEN)")
	sessionID := flag.String("session", "", "Existing session id (skips authentication)")
	apiURL := flag.String("api", "", "Backend url (default: GAMPLO_API_URL or https://gamplo.com)")
	charset := flag.String("charset", "", "Chat stream charset (default: utf-8)")
	queueSize := flag.Int("queue", 1024, "Buffered chat messages before dropping")
	statsInterval := flag.Duration("stats-interval", time.Minute, "Metrics log interval (0=disable)")
	sendRate := flag.Float64("send-rate", 2, "Messages per second posted from stdin (0=unlimited)")
	envFile := flag.String("env-file", ".env", "Dotenv file loaded before reading GAMPLO_* variables")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus listen address, e.g. :9102 (empty=disable)")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disable)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logs.Errorf("load %s: %v", *envFile, err)
	}

	if err := run(options{
		rooms:         *roomsFlag,
		sendRoom:      model.RoomID(*sendRoom),
		token:         *token,
		sessionID:     *sessionID,
		apiURL:        *apiURL,
		charset:       *charset,
		queueSize:     *queueSize,
		statsInterval: *statsInterval,
		sendRate:      *sendRate,
		metricsAddr:   *metricsAddr,
		pyroscopeAddr: *pyroscopeAddr,
		args:          flag.Args(),
	}); err != nil {
		logs.Errorf("gamplo-chat: %+v", err)
		os.Exit(1)
	}
}

type options struct {
	rooms         string
	sendRoom      model.RoomID
	token         string
	sessionID     string
	apiURL        string
	charset       string
	queueSize     int
	statsInterval time.Duration
	sendRate      float64
	metricsAddr   string
	pyroscopeAddr string
	args          []string
}

func run(opt options) error {
	rooms, err := parseRooms(opt.rooms)
	if err != nil {
		return err
	}
	target := opt.sendRoom
	if target == 0 && len(rooms) > 0 {
		target = rooms[0]
	}

	if opt.pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "gamplo-chat",
			ServerAddress:   opt.pyroscopeAddr,
			Logger:          pyroscopeLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return fmt.Errorf("pyroscope start failed: %w", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	sdkOpts := []gamplo.Option{gamplo.WithArgs(opt.args)}
	if opt.apiURL != "" {
		sdkOpts = append(sdkOpts, gamplo.WithAPIURL(opt.apiURL))
	}
	if opt.token != "" {
		sdkOpts = append(sdkOpts, gamplo.WithToken(opt.token))
	}
	if opt.sessionID != "" {
		sdkOpts = append(sdkOpts, gamplo.WithSessionID(opt.sessionID))
	}
	if opt.charset != "" {
		sdkOpts = append(sdkOpts, gamplo.WithCharset(opt.charset))
	}
	if opt.sendRate > 0 {
		sdkOpts = append(sdkOpts, gamplo.WithSendRate(opt.sendRate, 1))
	}
	metrics := obs.NewMetrics()
	sdkOpts = append(sdkOpts, gamplo.WithMetrics(metrics))
	sdkOpts = append(sdkOpts, gamplo.WithOnChatFailure(func(room model.RoomID, err error) {
		logs.Errorf("room %d dropped: %v", room, err)
	}))

	sdk, err := gamplo.New(sdkOpts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sdk.Init(ctx); err != nil {
		return err
	}
	if _, ok := sdk.SessionID(); !ok {
		return errors.New("no session: pass -session, -gamplo_token or set GAMPLO_TOKEN")
	}
	if player, err := sdk.Player(ctx); err == nil && player != nil {
		logs.Infof("signed in as %s (%s)", player.DisplayName, player.Username)
	}

	var metricsSrv *http.Server
	if opt.metricsAddr != "" {
		if metricsSrv, err = newMetricsServer(opt.metricsAddr, metrics); err != nil {
			return err
		}
	}

	queue := bus.NewQueue(opt.queueSize)
	for _, room := range rooms {
		if _, err := sdk.ConnectToChat(room, publishTo(queue, room)); err != nil {
			return fmt.Errorf("join room %d: %w", room, err)
		}
		logs.Infof("joined room %d", room)
	}

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		queue.Run(gctx, func(d bus.Delivery) {
			fmt.Println(formatDelivery(d))
		})
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return errStdinClosed
				}
				if target == 0 {
					logs.Errorf("no room to send to, pass -send-room")
					continue
				}
				if _, err := sdk.SendMessage(gctx, target, line); err != nil {
					logs.Errorf("send to room %d: %v", target, err)
				}
			}
		}
	})
	g.Go(func() error {
		select {
		case <-sys.Shutdown():
			return errShutdown
		case <-gctx.Done():
			return nil
		}
	})
	if metricsSrv != nil {
		g.Go(func() error {
			logs.Infof("metrics listening on %s", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
			defer stop()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}
	if opt.statsInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(opt.statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					logs.Infof("chat stats: %s", formatSnapshot(sdk.Metrics()))
				}
			}
		})
	}

	err = g.Wait()

	stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if destroyErr := sdk.Destroy(stopCtx); destroyErr != nil {
		logs.Errorf("chat streams did not stop: %v", destroyErr)
	}
	queue.Close()
	logs.Infof("chat stats: %s", formatSnapshot(sdk.Metrics()))

	if errors.Is(err, errShutdown) || errors.Is(err, errStdinClosed) {
		return nil
	}
	return err
}

func newMetricsServer(addr string, metrics *obs.Metrics) (*http.Server, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("invalid metrics address %q: %w", addr, err)
	}
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}, nil
}

func publishTo(queue *bus.Queue, room model.RoomID) func(model.ChatMessage) {
	return func(msg model.ChatMessage) {
		err := queue.TryPublish(bus.Delivery{Room: room, Message: msg, ReceivedAt: time.Now()})
		if err != nil && !errors.Is(err, bus.ErrQueueClosed) {
			logs.Errorf("drop message %s of room %d: %v", msg.ID, room, err)
		}
	}
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			out <- line
		}
	}
}

func parseRooms(raw string) ([]model.RoomID, error) {
	var rooms []model.RoomID
	seen := make(map[model.RoomID]struct{})
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil || !model.RoomID(id).Valid() {
			return nil, fmt.Errorf("invalid room id %q", field)
		}
		room := model.RoomID(id)
		if _, ok := seen[room]; ok {
			continue
		}
		seen[room] = struct{}{}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func formatDelivery(d bus.Delivery) string {
	name := d.Message.DisplayName
	if name == "" {
		name = d.Message.Username
	}
	if name == "" {
		name = d.Message.UserID
	}
	at := d.ReceivedAt
	if d.Message.Timestamp > 0 {
		at = d.Message.Time()
	}
	return fmt.Sprintf("[%s] #%d %s: %s", at.Format(time.TimeOnly), d.Room, name, d.Message.Message)
}

func formatSnapshot(s obs.Snapshot) string {
	counters := make([]string, 0, len(s.Counters))
	for counter, value := range s.Counters {
		counters = append(counters, fmt.Sprintf("%s=%d", counter, value))
	}
	sort.Strings(counters)
	if lat := s.DeliveryLatency; lat.Count > 0 {
		counters = append(counters, fmt.Sprintf("delivery_latency(avg=%s min=%s max=%s)", lat.Avg, lat.Min, lat.Max))
	}
	if len(counters) == 0 {
		return "none"
	}
	return strings.Join(counters, " ")
}

type pyroscopeLogger struct{}

func (pyroscopeLogger) Infof(format string, args ...interface{}) {
	logs.Infof(format, args...)
}

func (pyroscopeLogger) Debugf(_ string, _ ...interface{}) {}

func (pyroscopeLogger) Errorf(format string, args ...interface{}) {
	logs.Errorf(format, args...)
}
