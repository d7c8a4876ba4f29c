package twitter

import (
	"bytes"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/Luismorlan/postmux/normalizer"
	"github.com/Luismorlan/postmux/store"
	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	WebhookSourceTag  = "webhook"
	tweetCreateEvents = "tweet_create_events"
)

// MessageHandler accepts account activity payloads, or bare posts, normalizes
// every post they carry and persists the records.
type MessageHandler struct {
	Normalizer *normalizer.Normalizer
	Store      store.RecordStore
	Links      store.LinkQueue
}

func (h *MessageHandler) HandleTwitterMessage(c *gin.Context) {
	requestId := uuid.New().String()
	logger := Logger.Log.WithField("request_id", requestId)

	jsonData, err := ioutil.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, "fail to get request body"+err.Error())
		return
	}
	posts, err := ExtractPosts(jsonData)
	if err != nil {
		logger.Warnln("reject payload:", err)
		c.JSON(http.StatusBadRequest, gin.H{"request_id": requestId, "error": err.Error()})
		return
	}

	saved, failed := 0, 0
	it := h.Normalizer.Batch(normalizer.NewSliceSource(posts...))
	for {
		record, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			failed++
			logger.Errorln("fail to normalize post:", err)
			continue
		}
		if err := store.Persist(c.Request.Context(), h.Store, h.Links, record); err != nil {
			failed++
			logger.Errorln(err)
			continue
		}
		saved++
	}
	logger.Infof("webhook payload handled, %d saved, %d failed", saved, failed)
	c.JSON(http.StatusOK, gin.H{"request_id": requestId, "saved": saved, "failed": failed})
}

// ExtractPosts returns the posts of an account activity payload. A payload
// without tweet_create_events is taken as a single post, a top level array as
// a list of posts. Posts are tagged as coming from the webhook unless the
// sender tagged them already.
func ExtractPosts(data []byte) ([]interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var payload interface{}
	if err := decoder.Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "payload is not json")
	}

	var posts []interface{}
	switch p := payload.(type) {
	case []interface{}:
		posts = p
	case map[string]interface{}:
		events, ok := p[tweetCreateEvents]
		if !ok {
			posts = []interface{}{p}
			break
		}
		list, ok := events.([]interface{})
		if !ok {
			return nil, errors.Errorf("%s is not a list", tweetCreateEvents)
		}
		posts = list
	default:
		return nil, errors.New("payload is neither an object nor a list")
	}

	for _, post := range posts {
		if m, ok := post.(map[string]interface{}); ok && !normalizer.IsNormalized(m) {
			if _, tagged := m[normalizer.SourceTagKey]; !tagged {
				m[normalizer.SourceTagKey] = WebhookSourceTag
			}
		}
	}
	return posts, nil
}
