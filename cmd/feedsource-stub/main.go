// Command feedsource-stub is a local stand-in for the remote notification
// feed. It serves the two channel endpoints with a small rotating set of
// sample notifications so the service can be run end to end without the real
// upstream.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubNotification struct {
	RemoteID  string    `json:"remoteId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"createdAt"`
}

var pushSamples = []stubNotification{
	{Title: "Shift swap approved", Message: "Your Saturday shift was swapped with Dana", Category: "shifts", Priority: "high"},
	{Title: "Roster published", Message: "Next week's roster is now available", Category: "shifts", Priority: "medium"},
	{Title: "Timesheet reminder", Message: "Submit your timesheet before Friday 17:00", Category: "timesheets", Priority: "medium"},
}

var inappSamples = []stubNotification{
	{Title: "Leave approved", Message: "Your leave request for Sep 2-4 was approved", Category: "leave", Priority: "low"},
	{Title: "Expense reimbursed", Message: "Your travel expense claim was paid out", Category: "expenses", Priority: "low"},
	{Title: "Roster published", Message: "Next week's roster is now available", Category: "shifts", Priority: "medium"},
}

// channelFeed returns the sample set with fresh IDs and recent timestamps,
// so repeated fetches look like a live feed.
func channelFeed(samples []stubNotification) []stubNotification {
	now := time.Now().UTC()
	out := make([]stubNotification, len(samples))
	for i, s := range samples {
		s.RemoteID = uuid.New().String()
		s.CreatedAt = now.Add(-time.Duration(i) * 7 * time.Minute)
		out[i] = s
	}
	return out
}

func main() {
	port := flag.String("port", "9090", "port to listen on")
	apiKey := flag.String("api-key", "", "require this x-api-key header (empty disables the check)")
	flag.Parse()

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	feeds := map[string][]stubNotification{
		"push":  pushSamples,
		"inapp": inappSamples,
	}

	r.GET("/v1/feeds/:channel", func(c *gin.Context) {
		if *apiKey != "" && c.GetHeader("x-api-key") != *apiKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}
		if c.Query("userId") == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId query parameter is required"})
			return
		}
		samples, ok := feeds[c.Param("channel")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown channel"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": channelFeed(samples)})
	})

	fmt.Printf("feedsource-stub listening on :%s\n", *port)
	if err := r.Run(":" + *port); err != nil {
		fmt.Printf("server error: %v\n", err)
	}
}
