// disk_usage.go — метрики ёмкости диска директории содержимого.
// Платформозависимый код для Unix-подобных систем.
package main

import (
	"fmt"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// getDiskUsage возвращает информацию о дисковом пространстве в директории.
// Возвращает total, used, available в байтах.
func getDiskUsage(path string) (total, used, available int64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, 0, fmt.Errorf("ошибка statfs %s: %w", path, err)
	}

	total = int64(stat.Blocks) * int64(stat.Bsize)
	available = int64(stat.Bavail) * int64(stat.Bsize)
	used = total - available

	return total, used, available, nil
}

// registerDiskMetrics регистрирует fm_storage_disk_bytes{kind}.
// Значения читаются при каждом scrape; ошибка statfs даёт 0.
func registerDiskMetrics(dir string) {
	pick := func(kind string) func() float64 {
		return func() float64 {
			total, used, available, err := getDiskUsage(dir)
			if err != nil {
				return 0
			}
			switch kind {
			case "total":
				return float64(total)
			case "used":
				return float64(used)
			default:
				return float64(available)
			}
		}
	}
	for _, kind := range []string{"total", "used", "available"} {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "fm_storage_disk_bytes",
			Help:        "Ёмкость диска директории содержимого",
			ConstLabels: prometheus.Labels{"kind": kind},
		}, pick(kind))
	}
}
