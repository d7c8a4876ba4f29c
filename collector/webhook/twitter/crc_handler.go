// Implement Twitter CRC challenge according to
// https://developer.twitter.com/en/docs/twitter-api/enterprise/account-activity-api/guides/securing-webhooks
package twitter

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"os"

	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/gin-gonic/gin"
)

const (
	AppSecretEnv  = "TWITTER_APP_SECRET"
	CrcToken      = "crc_token"
	ResponseToken = "response_token"
)

// Encode the challenge using HMAC SHA256 with incoming token and the app
// secret.
func HandleTwitterCRC(c *gin.Context) {
	token, ok := c.GetQuery(CrcToken)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + CrcToken})
		return
	}
	secret := os.Getenv(AppSecretEnv)
	if secret == "" {
		Logger.Log.Errorf("%s is not set, cannot answer CRC challenge", AppSecretEnv)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{ResponseToken: ChallengeResponse(secret, token)})
}

func ChallengeResponse(secret, token string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(token))
	return "sha256=" + base64.StdEncoding.EncodeToString(h.Sum(nil))
}
