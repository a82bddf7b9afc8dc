package fileexporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/cqkv/clipring/metrics"
)

type FileExporter struct{ name string }

func New(name string) *FileExporter {
	return &FileExporter{
		name: name,
	}
}

func (exp *FileExporter) Export() {
	if err := prometheus.WriteToTextfile(exp.name, metrics.Registry); err != nil {
		logrus.WithError(err).Warnf("write metrics to %s", exp.name)
	}
}
