package collector

import (
	"io"
	"time"

	"github.com/Luismorlan/postmux/normalizer"
	Logger "github.com/Luismorlan/postmux/utils/log"
	twitterscraper "github.com/n0madic/twitter-scraper"
	"github.com/pkg/errors"
)

const (
	ScraperSourceTag = "scraper"
	defaultPageSize  = 20
)

// TweetFetcher is the part of *twitterscraper.Scraper the source needs.
type TweetFetcher interface {
	FetchTweets(user string, maxTweetsNbr int, cursor string) ([]*twitterscraper.Tweet, string, error)
}

// ScraperSource pages through the timelines of a list of users and serves each
// tweet as a raw post.
type ScraperSource struct {
	fetcher    TweetFetcher
	users      []string
	maxPerUser int
	pageSize   int

	buffer  []*twitterscraper.Tweet
	cursor  string
	fetched int
}

// NewScraperSource fetches at most maxPerUser tweets of every user.
func NewScraperSource(fetcher TweetFetcher, users []string, maxPerUser int) *ScraperSource {
	if maxPerUser <= 0 {
		maxPerUser = defaultPageSize
	}
	return &ScraperSource{
		fetcher:    fetcher,
		users:      users,
		maxPerUser: maxPerUser,
		pageSize:   defaultPageSize,
	}
}

func (s *ScraperSource) Next() (interface{}, error) {
	for len(s.buffer) == 0 {
		if len(s.users) == 0 {
			return nil, io.EOF
		}
		if err := s.fetchPage(); err != nil {
			return nil, err
		}
	}
	tweet := s.buffer[0]
	s.buffer = s.buffer[1:]
	return map[string]interface{}(ConvertTweetToRawPost(tweet)), nil
}

// fetchPage loads the next page of the current user, moving on to the next
// user once the timeline or the quota is exhausted.
func (s *ScraperSource) fetchPage() error {
	user := s.users[0]
	size := s.pageSize
	if left := s.maxPerUser - s.fetched; left < size {
		size = left
	}
	tweets, cursor, err := s.fetcher.FetchTweets(user, size, s.cursor)
	if err != nil {
		return errors.Wrapf(err, "fail to fetch tweets of %s", user)
	}
	Logger.Log.Debugf("fetched %d tweets of %s", len(tweets), user)

	if len(tweets) > size {
		tweets = tweets[:size]
	}
	s.buffer = append(s.buffer, tweets...)
	s.fetched += len(tweets)
	s.cursor = cursor

	if len(tweets) == 0 || cursor == "" || s.fetched >= s.maxPerUser {
		s.users = s.users[1:]
		s.cursor = ""
		s.fetched = 0
	}
	return nil
}

// ConvertTweetToRawPost lays a scraped tweet out the way the streaming API
// shapes posts, so it goes through the same normalization. The scraper only
// sees expanded links, urls entities carry them as both short and expanded
// form.
func ConvertTweetToRawPost(tweet *twitterscraper.Tweet) normalizer.RawPost {
	post := convertSingleTweet(tweet)
	if tweet.IsRetweet && tweet.RetweetedStatus != nil {
		post["retweeted_status"] = map[string]interface{}(convertSingleTweet(tweet.RetweetedStatus))
	}
	if tweet.IsQuoted && tweet.QuotedStatus != nil {
		post["is_quote_status"] = true
		post["quoted_status_id_str"] = tweet.QuotedStatus.ID
	}
	post[normalizer.SourceTagKey] = ScraperSourceTag
	return post
}

func convertSingleTweet(tweet *twitterscraper.Tweet) normalizer.RawPost {
	hashtags := []interface{}{}
	for _, tag := range tweet.Hashtags {
		hashtags = append(hashtags, map[string]interface{}{"text": tag})
	}
	urls := []interface{}{}
	for _, u := range tweet.URLs {
		urls = append(urls, map[string]interface{}{"url": u, "expanded_url": u})
	}
	media := []interface{}{}
	for _, photo := range tweet.Photos {
		media = append(media, map[string]interface{}{
			"type":            "photo",
			"media_url":       photo,
			"media_url_https": photo,
		})
	}
	for _, video := range tweet.Videos {
		media = append(media, map[string]interface{}{
			"type":            "video",
			"id_str":          video.ID,
			"media_url":       video.Preview,
			"media_url_https": video.Preview,
			"video_info": map[string]interface{}{
				"variants": []interface{}{
					map[string]interface{}{"url": video.URL},
				},
			},
		})
	}

	post := normalizer.RawPost{
		"id_str":     tweet.ID,
		"created_at": time.Unix(tweet.Timestamp, 0).UTC().Format(normalizer.CreatedAtLayout),
		"full_text":  tweet.Text,
		"user": map[string]interface{}{
			"id_str":      tweet.UserID,
			"screen_name": tweet.Username,
		},
		"entities": map[string]interface{}{
			"hashtags": hashtags,
			"urls":     urls,
			"media":    media,
		},
		"extended_entities": map[string]interface{}{
			"media": media,
		},
		"retweet_count":  tweet.Retweets,
		"favorite_count": tweet.Likes,
		"reply_count":    tweet.Replies,
	}
	if tweet.IsReply && tweet.InReplyToStatus != nil {
		post["in_reply_to_status_id_str"] = tweet.InReplyToStatus.ID
		post["in_reply_to_screen_name"] = tweet.InReplyToStatus.Username
		post["in_reply_to_user_id_str"] = tweet.InReplyToStatus.UserID
	}
	return post
}
