package normalizer

import (
	"testing"
	"time"

	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const extendedTweet = `{
  "id": 1316000000000000001,
  "id_str": "1316000000000000001",
  "created_at": "Tue Oct 13 12:00:00 +0000 2020",
  "text": "short version https://t.co/short",
  "truncated": true,
  "lang": "en",
  "in_reply_to_status_id": 1315999999999999999,
  "retweet_count": 3,
  "postmux_source": "stream",
  "user": {
    "id": 42,
    "id_str": "42",
    "screen_name": "Carol",
    "name": "Carol C",
    "followers_count": 10,
    "created_at": "Mon Jan 05 08:30:00 +0000 2015",
    "url": "https://t.co/profile",
    "entities": {"url": {"urls": [{"url": "https://t.co/profile", "expanded_url": "https://carol.example.com"}]}}
  },
  "extended_tweet": {
    "full_text": "Tom &amp; Jerry #Foo #foo @Bob @bob http://t.co/x https://t.co/pic",
    "entities": {
      "hashtags": [{"text": "Foo"}, {"text": "foo"}],
      "user_mentions": [{"screen_name": "Bob", "id_str": "10"}, {"screen_name": "bob", "id_str": "11"}],
      "urls": [
        {"url": "http://t.co/x", "expanded_url": "http://example.com/a"},
        {"url": "http://t.co/y", "expanded_url": "http://b.example.com"},
        {"url": "http://t.co/x", "expanded_url": "http://example.com/a"}
      ]
    },
    "extended_entities": {
      "media": [{
        "url": "https://t.co/pic",
        "expanded_url": "https://twitter.com/Carol/status/1316000000000000001/photo/1",
        "media_url": "http://pbs.twimg.com/media/abc.jpg",
        "media_url_https": "https://pbs.twimg.com/media/abc.jpg",
        "type": "photo"
      }]
    }
  }
}`

const retweetPost = `{
  "id_str": "1",
  "created_at": "Tue Oct 13 12:00:00 +0000 2020",
  "text": "RT @alice: h…",
  "user": {"screen_name": "dave", "id_str": "7"},
  "entities": {
    "urls": [],
    "media": [{"media_url": "http://pbs.twimg.com/media/same.jpg", "media_url_https": "https://pbs.twimg.com/media/same.jpg"}]
  },
  "retweeted_status": {
    "id_str": "2",
    "created_at": "Tue Oct 13 11:00:00 +0000 2020",
    "text": "hi",
    "user": {"screen_name": "alice", "id_str": "5"},
    "entities": {
      "hashtags": [{"text": "Go"}],
      "urls": [{"url": "https://t.co/z", "expanded_url": "https://golang.org"}],
      "media": [{"media_url": "http://pbs.twimg.com/ext/same.jpg", "media_url_https": "https://pbs.twimg.com/ext/same.jpg"}]
    }
  }
}`

const videoPost = `{
  "id_str": "3",
  "created_at": "Tue Oct 13 12:00:00 +0000 2020",
  "text": "clip",
  "user": {"screen_name": "erin"},
  "extended_entities": {
    "media": [
      {
        "media_url": "http://pbs.twimg.com/ext_tw_video_thumb/1/pu/img/thumb.jpg",
        "media_url_https": "https://pbs.twimg.com/ext_tw_video_thumb/1/pu/img/thumb.jpg",
        "video_info": {"variants": [
          {"content_type": "application/x-mpegURL", "url": "https://video.twimg.com/v/playlist.m3u8?tag=10"},
          {"bitrate": 832000, "url": "https://video.twimg.com/v/480x270/low.mp4?tag=10"},
          {"bitrate": 2176000, "url": "https://video.twimg.com/v/1280x720/high.mp4?tag=10"}
        ]}
      },
      {"media_url": "http://pbs.twimg.com/empty.jpg", "video_info": {"variants": []}},
      {"media_url": "http://pbs.twimg.com/nohttps.jpg"}
    ]
  }
}`

var fixedNow = time.Unix(1600000000, 0)

func newTestNormalizer(locale *time.Location) *Normalizer {
	n := NewNormalizer(locale, nil, nil)
	n.Now = func() time.Time { return fixedNow }
	return n
}

func TestNormalizeExtendedTweet(t *testing.T) {
	record, err := newTestNormalizer(nil).Normalize(mustDecode(t, extendedTweet))
	require.Nil(t, err)

	assert.Equal(t, "1316000000000000001", record.ID())
	assert.Equal(t, "Tue Oct 13 12:00:00 +0000 2020", record[CreatedAtKey])
	assert.Equal(t, "2020-10-13T12:00:00", record[TimestampKey])
	assert.Equal(t,
		"Tom & Jerry #Foo #foo @Bob @bob http://example.com/a https://twitter.com/Carol/status/1316000000000000001/photo/1",
		record.Text())
	assert.Equal(t, "https://twitter.com/Carol/statuses/1316000000000000001", record.URL())
	assert.Nil(t, record[RetweetIdKey])
	assert.Nil(t, record[RetweetUserKey])
	assert.Nil(t, record[RetweetUserIdKey])
	assert.Equal(t, [][2]string{{"1316000000000000001_abc.jpg", "https://pbs.twimg.com/media/abc.jpg"}}, record[MediasKey])
	assert.Equal(t, []string{"http://b.example.com", "http://example.com/a"}, record[LinksKey])
	assert.Equal(t, true, record[LinksToResolveKey])
	assert.Equal(t, []string{"foo"}, record[HashtagsKey])
	assert.Equal(t, []string{"bob"}, record[MentionsNamesKey])
	assert.Equal(t, []string{"11"}, record[MentionsIdsKey])
	assert.Equal(t, float64(1600000000), record[CollectedAtTimestampKey])
	assert.Equal(t, true, record["collected_via_stream"])

	// Metadata.
	assert.Equal(t, true, record["truncated"])
	assert.Equal(t, "en", record["lang"])
	assert.Equal(t, "1315999999999999999", record["in_reply_to_status_id_str"])
	assert.Equal(t, "42", record["user_id_str"])
	assert.Equal(t, "Carol", record["user_screen_name"])
	assert.Equal(t, "Carol C", record["user_name"])
	assert.Equal(t, "https://carol.example.com", record[UserURLKey])
	assert.Equal(t, "2015-01-05T08:30:00", record[UserCreatedAtTimestampKey])
}

func TestNormalizeWithLocale(t *testing.T) {
	record, err := newTestNormalizer(time.FixedZone("UTC-5", -5*60*60)).Normalize(mustDecode(t, extendedTweet))
	require.Nil(t, err)
	assert.Equal(t, time.Date(2020, time.October, 13, 12, 0, 0, 0, time.UTC).Unix(), record[TimestampKey])
	assert.Equal(t, time.Date(2015, time.January, 5, 8, 30, 0, 0, time.UTC).Unix(), record[UserCreatedAtTimestampKey])
}

func TestNormalizeRetweet(t *testing.T) {
	record, err := newTestNormalizer(nil).Normalize(mustDecode(t, retweetPost))
	require.Nil(t, err)

	assert.Equal(t, "1", record.ID())
	assert.Equal(t, "RT @alice: hi", record.Text())
	assert.Equal(t, "https://twitter.com/dave/statuses/1", record.URL())
	assert.Equal(t, "2", record[RetweetIdKey])
	assert.Equal(t, "alice", record[RetweetUserKey])
	assert.Equal(t, "5", record[RetweetUserIdKey])
	assert.Equal(t, []string{"go"}, record[HashtagsKey])
	assert.Equal(t, []string{"https://golang.org"}, record[LinksKey])
	// Same file name on both sides is the same media, the first one is kept.
	assert.Equal(t, [][2]string{{"1_same.jpg", "https://pbs.twimg.com/media/same.jpg"}}, record[MediasKey])
	assert.Equal(t, "7", record["user_id_str"])
}

func TestNormalizeSelfRetweetIsPlainPost(t *testing.T) {
	post := mustDecode(t, `{
		"id_str": "1", "created_at": "Tue Oct 13 12:00:00 +0000 2020", "text": "own",
		"user": {"screen_name": "dave"},
		"retweeted_status": {"id_str": "1", "text": "other", "user": {"screen_name": "alice"}}
	}`)
	record, err := newTestNormalizer(nil).Normalize(post)
	require.Nil(t, err)
	assert.Equal(t, "own", record.Text())
	assert.Nil(t, record[RetweetIdKey])
}

func TestNormalizeVideoAndDegenerateMedia(t *testing.T) {
	record, err := newTestNormalizer(nil).Normalize(mustDecode(t, videoPost))
	require.Nil(t, err)
	assert.Equal(t, [][2]string{{"3_high.mp4", "https://video.twimg.com/v/1280x720/high.mp4?tag=10"}}, record[MediasKey])
	assert.Equal(t, []string{}, record[LinksKey])
	assert.Equal(t, false, record[LinksToResolveKey])
}

func TestNormalizeEqualBitratesLastWins(t *testing.T) {
	post := mustDecode(t, `{
		"id_str": "4", "created_at": "Tue Oct 13 12:00:00 +0000 2020", "text": "clip",
		"user": {"screen_name": "erin"},
		"entities": {"media": [{"media_url": "x", "video_info": {"variants": [
			{"url": "https://video.twimg.com/a.mp4"},
			{"bitrate": 0, "url": "https://video.twimg.com/b.mp4"}
		]}}]}
	}`)
	record, err := newTestNormalizer(nil).Normalize(post)
	require.Nil(t, err)
	assert.Equal(t, []string{"https://video.twimg.com/b.mp4"}, record.MediaURLs())
}

func TestNormalizeWithoutEntities(t *testing.T) {
	post := mustDecode(t, `{"id": 5, "created_at": "Tue Oct 13 12:00:00 +0000 2020", "user": {"screen_name": "frank"}}`)
	record, err := newTestNormalizer(nil).Normalize(post)
	require.Nil(t, err)

	assert.Equal(t, "5", record.ID())
	assert.Equal(t, "", record.Text())
	assert.Equal(t, [][2]string{}, record[MediasKey])
	assert.Equal(t, []string{}, record[LinksKey])
	assert.Equal(t, []string{}, record[HashtagsKey])
	assert.Equal(t, []string{}, record[MentionsIdsKey])
	assert.Equal(t, []string{}, record[MentionsNamesKey])
	assert.Equal(t, false, record[LinksToResolveKey])
}

// captureLogs records what the global logger emits until the test ends.
func captureLogs(t *testing.T) *test.Hook {
	previous := Logger.Log.Logger.ReplaceHooks(make(logrus.LevelHooks))
	t.Cleanup(func() { Logger.Log.Logger.ReplaceHooks(previous) })
	return test.NewLocal(Logger.Log.Logger)
}

func warnings(hook *test.Hook) []string {
	res := []string{}
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			res = append(res, entry.Message)
		}
	}
	return res
}

func TestNormalizeEmptyTextIsLogged(t *testing.T) {
	hook := captureLogs(t)

	post := mustDecode(t, `{"id_str": "5", "created_at": "Tue Oct 13 12:00:00 +0000 2020", "user": {"screen_name": "frank"}}`)
	record, err := newTestNormalizer(nil).Normalize(post)
	require.Nil(t, err)
	assert.Equal(t, "", record.Text())
	assert.Equal(t, []string{"no text for post https://twitter.com/frank/statuses/5"}, warnings(hook))

	hook.Reset()
	_, err = newTestNormalizer(nil).Normalize(mustDecode(t, extendedTweet))
	require.Nil(t, err)
	assert.Empty(t, warnings(hook))
}

func TestNormalizeRetweetWithoutAuthorHandle(t *testing.T) {
	hook := captureLogs(t)

	post := mustDecode(t, `{
		"id_str": "3",
		"created_at": "Tue Oct 13 12:00:00 +0000 2020",
		"text": "outer",
		"user": {"screen_name": "a"},
		"retweeted_status": {
			"id_str": "4",
			"text": "in",
			"user": {},
			"entities": {"hashtags": [{"text": "Inner"}]}
		}
	}`)
	record, err := newTestNormalizer(nil).Normalize(post)
	require.Nil(t, err)

	assert.Equal(t, "3", record.ID())
	assert.Equal(t, "outer", record.Text())
	assert.Nil(t, record[RetweetIdKey])
	assert.Nil(t, record[RetweetUserKey])
	assert.Nil(t, record[RetweetUserIdKey])
	assert.Equal(t, []string{}, record[HashtagsKey])
	require.Len(t, warnings(hook), 1)
	assert.Contains(t, warnings(hook)[0], "ignore repost 4 of post 3")
}

func TestNormalizeMissingRequiredFields(t *testing.T) {
	n := newTestNormalizer(nil)

	testCases := []struct {
		name     string
		post     string
		field    string
		postID   string
		badClock bool
	}{
		{
			name:  "no id",
			post:  `{"created_at": "Tue Oct 13 12:00:00 +0000 2020", "user": {"screen_name": "a"}}`,
			field: "id_str",
		},
		{
			name:   "no author handle",
			post:   `{"id_str": "3", "created_at": "Tue Oct 13 12:00:00 +0000 2020", "user": {}}`,
			field:  "user.screen_name",
			postID: "3",
		},
		{
			name:   "no created_at",
			post:   `{"id_str": "3", "user": {"screen_name": "a"}}`,
			field:  "created_at",
			postID: "3",
		},
		{
			name:     "malformed created_at",
			post:     `{"id_str": "3", "created_at": "2020-10-13", "user": {"screen_name": "a"}}`,
			field:    "created_at",
			postID:   "3",
			badClock: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			record, err := n.Normalize(mustDecode(t, tc.post))
			assert.Nil(t, record)
			require.NotNil(t, err)
			assert.True(t, errors.Is(err, ErrMissingRequiredField))

			var missing *MissingRequiredFieldError
			require.True(t, errors.As(err, &missing))
			assert.Equal(t, tc.field, missing.Field)
			assert.Equal(t, tc.postID, missing.PostID)
			if tc.badClock {
				assert.True(t, errors.Is(err, ErrMalformedTimestamp))
			}
		})
	}
}

func TestNormalizeLeavesRawPostUntouched(t *testing.T) {
	for _, fixture := range []string{extendedTweet, retweetPost, videoPost} {
		raw := mustDecode(t, fixture)
		pristine := mustDecode(t, fixture)

		_, err := newTestNormalizer(nil).Normalize(raw)
		require.Nil(t, err)
		if diff := cmp.Diff(pristine, raw); diff != "" {
			t.Errorf("raw post modified (-want +got):\n%s", diff)
		}
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := newTestNormalizer(nil)
	first, err := n.Normalize(mustDecode(t, extendedTweet))
	require.Nil(t, err)
	second, err := n.Normalize(mustDecode(t, extendedTweet))
	require.Nil(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("records differ (-first +second):\n%s", diff)
	}
}
