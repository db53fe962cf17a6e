package folderdb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindTable   = "table"
	kindJournal = "journal"
	kindFile    = "file"
)

var (
	namespace = "folderdb"

	writesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Total number of committed writes by handle kind",
		},
		[]string{"kind"},
	)

	backupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_total",
			Help:      "Total number of snapshot backups by status",
		},
		[]string{"status"},
	)

	backupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backup_duration_seconds",
			Help:      "Duration of snapshot backups in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)

	backupsPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_pruned_total",
			Help:      "Total number of backups deleted by retention",
		},
	)

	archivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archived_total",
			Help:      "Total number of archive operations by handle kind",
		},
		[]string{"kind"},
	)
)
