package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"ytqueue/internal/queue"
)

const titleWidth = 48

var jobColumns = []column{
	{header: "Title", maxWidth: titleWidth},
	{header: "URL"},
	{header: "Status"},
	{header: "Progress", right: true},
	{header: "Speed", right: true},
	{header: "ETA", right: true},
	{header: "Size", right: true},
}

func buildJobRows(jobs []*queue.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		rows = append(rows, []string{
			jobTitle(job),
			job.URL,
			jobStatus(job),
			formatPercent(job.Percent),
			formatSpeed(job.Speed),
			formatETA(job.ETA),
			formatSize(job.Size),
		})
	}
	return rows
}

func jobTitle(job *queue.Job) string {
	title := strings.TrimSpace(job.Title)
	if title == "" {
		return job.ID
	}
	return title
}

func jobStatus(job *queue.Job) string {
	status := string(job.Status)
	if job.Phase != "" && !job.Status.Terminal() {
		status += " (" + job.Phase + ")"
	}
	if job.Status == queue.StatusError {
		if msg := strings.TrimSpace(firstNonEmpty(job.Error, job.Message)); msg != "" {
			status += ": " + msg
		}
	}
	return status
}

func formatPercent(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *p)
}

func formatSpeed(speed *float64) string {
	if speed == nil || *speed <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(*speed)) + "/s"
}

func formatETA(eta *int64) string {
	if eta == nil || *eta < 0 {
		return "-"
	}
	return (time.Duration(*eta) * time.Second).String()
}

func formatSize(size *int64) string {
	if size == nil || *size < 0 {
		return "-"
	}
	return humanize.Bytes(uint64(*size))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
