package dashboard

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	applog "github.com/mo-amir99/course-market-go/pkg/logger"
	"github.com/mo-amir99/course-market-go/pkg/response"
)

const logsDir = applog.Dir

// DiskStats describes the filesystem holding the working directory.
type DiskStats struct {
	Free uint64 `json:"free"`
	Size uint64 `json:"size"`
	Path string `json:"path"`
}

// SystemStats returns process memory, CPU and disk figures.
// GET /dashboard/admin/system
func (h *Handler) SystemStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	root := "/"
	if runtime.GOOS == "windows" {
		root = "C:"
	}

	response.SuccessNoCache(c, http.StatusOK, gin.H{
		"memory": gin.H{
			"total": m.Sys,
			"used":  m.Alloc,
			"free":  m.Sys - m.Alloc,
		},
		"cpu": gin.H{
			"numCPU":     runtime.NumCPU(),
			"goroutines": runtime.NumGoroutine(),
		},
		"disk": diskUsage(root),
	}, "")
}

// SystemLogs returns the tail of info.log or error.log.
// GET /dashboard/admin/logs?type=info|error&lines=100
func (h *Handler) SystemLogs(c *gin.Context) {
	logType := c.DefaultQuery("type", "info")
	if logType != "info" && logType != "error" {
		logType = "info"
	}

	lines, err := strconv.Atoi(c.DefaultQuery("lines", "100"))
	if err != nil {
		lines = 100
	}
	if lines < 10 {
		lines = 10
	}
	if lines > 1000 {
		lines = 1000
	}

	path := filepath.Join(logsDir, logType+".log")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			response.Error(c, http.StatusNotFound, fmt.Sprintf("Log file not found: %s.log", logType), nil)
			return
		}
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to read log file", err)
		return
	}
	defer file.Close()

	// keep only the last n lines
	tail := make([]string, 0, lines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(tail) == lines {
			tail = tail[1:]
		}
		tail = append(tail, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to read log file", err)
		return
	}

	response.SuccessNoCache(c, http.StatusOK, gin.H{
		"type":  logType,
		"lines": len(tail),
		"log":   tail,
	}, "")
}

// ClearLogs truncates every .log file.
// POST /dashboard/admin/logs/clear
func (h *Handler) ClearLogs(c *gin.Context) {
	files, err := os.ReadDir(logsDir)
	if err != nil {
		if os.IsNotExist(err) {
			response.Error(c, http.StatusNotFound, "Logs directory not found", nil)
			return
		}
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "Failed to read logs directory", err)
		return
	}

	cleared := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".log") {
			continue
		}
		if err := os.Truncate(filepath.Join(logsDir, file.Name()), 0); err != nil {
			h.logger.Warn("failed to clear log file", "file", file.Name(), "error", err)
			continue
		}
		cleared++
	}

	h.logger.Info("log files cleared", "count", cleared)
	response.Success(c, http.StatusOK, gin.H{"cleared": cleared}, fmt.Sprintf("Cleared %d log files.", cleared), nil)
}
