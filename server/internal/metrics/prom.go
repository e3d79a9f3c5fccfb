package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "wspush_server_build_info",
			Help:        "Build information for the wspush server",
			ConstLabels: prometheus.Labels{"component": "server"},
		},
		[]string{"date", "sha", "version"},
	)

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wspush_frames_total",
			Help: "Frames pushed to connections by frame kind and result",
		},
		[]string{"kind", "result"},
	)

	frameBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wspush_frame_bytes_total",
			Help: "Payload bytes written in pushed frames",
		},
	)

	filesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wspush_files_total",
			Help: "File transfers by result",
		},
		[]string{"result"},
	)

	fileBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wspush_file_bytes_total",
			Help: "Bytes streamed from files",
		},
	)

	connsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wspush_connections_active",
			Help: "Currently open websocket connections",
		},
	)

	connsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wspush_connections_total",
			Help: "Accepted websocket connections",
		},
	)
)

// Register registers the server collectors with r.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, framesTotal, frameBytes, filesTotal, fileBytes, connsActive, connsTotal)
}

// SetServerBuildInfo sets the build info metric for the server.
func SetServerBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// RecordFrame counts one push attempt. kind is one of status, header, cookie
// or body as classified from the payload.
func RecordFrame(kind string, size int, ok bool) {
	framesTotal.WithLabelValues(kind, result(ok)).Inc()
	if ok {
		frameBytes.Add(float64(size))
	}
}

// RecordFile counts one file transfer and the bytes it streamed.
func RecordFile(n int64, ok bool) {
	filesTotal.WithLabelValues(result(ok)).Inc()
	if n > 0 {
		fileBytes.Add(float64(n))
	}
}

// ConnOpened tracks an accepted connection.
func ConnOpened() {
	connsTotal.Inc()
	connsActive.Inc()
}

// ConnClosed tracks a closed connection.
func ConnClosed() { connsActive.Dec() }
