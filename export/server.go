package export

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Luismorlan/postmux/store"
	Flag "github.com/Luismorlan/postmux/utils/flag"
	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

// Server answers CSV downloads of the stored records.
type Server struct {
	Store store.RecordStore
	// Dates of a query are read in this location, server local time if nil.
	Location      *time.Location
	ExtraFields   []string
	SelectedField string
}

func (s *Server) Router() *gin.Engine {
	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(gintrace.Middleware(*Flag.ServiceName))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	router.GET("/download", s.HandleDownload)
	return router
}

func (s *Server) HandleDownload(c *gin.Context) {
	query, errs := ParseQuery(c.Request.URL.Query(), s.Location, s.SelectedField)
	if len(errs) > 0 {
		lines := []string{"error"}
		for _, err := range errs {
			lines = append(lines, err.Error())
		}
		c.String(http.StatusBadRequest, strings.Join(lines, "\n"))
		return
	}

	start, end := query.Bounds()
	records, err := s.Store.Range(c.Request.Context(), start, end)
	if err != nil {
		Logger.Log.Errorln("fail to query records:", err)
		c.String(http.StatusInternalServerError, "error\nfail to query records")
		return
	}
	records = query.Filter(records)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records, s.ExtraFields); err != nil {
		Logger.Log.Errorln("fail to write csv:", err)
		c.String(http.StatusInternalServerError, "error\nfail to write csv")
		return
	}
	Logger.Log.Infof("export %d records for %s", len(records), query.FileName())

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", query.FileName()))
	c.Data(http.StatusOK, "text/csv; charset=UTF-8", buf.Bytes())
}
