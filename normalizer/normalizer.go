package normalizer

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	Logger "github.com/Luismorlan/postmux/utils/log"
)

const (
	extendedKey         = "extended_tweet"
	retweetedKey        = "retweeted_status"
	entitiesKey         = "entities"
	extendedEntitiesKey = "extended_entities"

	// Raw posts tagged by a collector under this key get a
	// collected_via_<tag> flag.
	SourceTagKey = "postmux_source"

	permalinkFormat = "https://twitter.com/%s/statuses/%s"
)

// Normalizer turns raw posts into records. It holds no state besides its
// configuration and can be shared by any number of goroutines.
type Normalizer struct {
	// Nil means timestamps are written as ISO-8601 strings.
	Locale   *time.Location
	Metadata *MetadataExtractor
	// Clock for collected_at_timestamp.
	Now func() time.Time
}

func NewNormalizer(locale *time.Location, extraPostFields, extraUserFields []string) *Normalizer {
	return &Normalizer{
		Locale:   locale,
		Metadata: NewMetadataExtractor(extraPostFields, extraUserFields, locale),
		Now:      time.Now,
	}
}

// entitySet maps an entity kind (urls, media, hashtags...) to its entities.
type entitySet map[string][]interface{}

func readEntitySet(post RawPost, key string) entitySet {
	m, ok := post.GetMap(key)
	if !ok {
		return nil
	}
	set := entitySet{}
	for kind, value := range m {
		if list, ok := value.([]interface{}); ok {
			set[kind] = list
		}
	}
	return set
}

// appendAll returns a new set holding s followed by other, kind by kind. The
// slices of both inputs are left untouched.
func (s entitySet) appendAll(other entitySet) entitySet {
	merged := entitySet{}
	for kind, list := range s {
		merged[kind] = list
	}
	for kind, list := range other {
		combined := make([]interface{}, 0, len(merged[kind])+len(list))
		combined = append(combined, merged[kind]...)
		merged[kind] = append(combined, list...)
	}
	return merged
}

func (s entitySet) objects(kind string) []RawPost {
	res := []RawPost{}
	for _, item := range s[kind] {
		if m, ok := asMap(item); ok {
			res = append(res, RawPost(m))
		}
	}
	return res
}

// mergeExtended returns a shallow copy of post with every extended_tweet field
// laid over it. Compact API shapes truncate text and entities, the extended
// object carries the full versions.
func mergeExtended(post RawPost) RawPost {
	merged := make(RawPost, len(post))
	for key, value := range post {
		merged[key] = value
	}
	if extended, ok := post.GetMap(extendedKey); ok {
		for key, value := range extended {
			merged[key] = value
		}
	}
	return merged
}

func selectText(post RawPost) string {
	if text, ok := post.GetString("full_text"); ok {
		return text
	}
	text, _ := post.GetString("text")
	return text
}

type retweet struct {
	id     string
	user   string
	userId string
}

// Normalize converts one raw post into a record. Only a missing id, author
// handle or created_at fails the record, with a *MissingRequiredFieldError;
// every other absent or odd field is skipped. raw is never modified.
func (n *Normalizer) Normalize(raw RawPost) (Record, error) {
	post := mergeExtended(raw)

	id, ok := postID(post)
	if !ok {
		return nil, missingField("id_str", "", nil)
	}
	handle, ok := post.GetString(authorKey, "screen_name")
	if !ok || handle == "" {
		return nil, missingField("user.screen_name", id, nil)
	}
	createdAt, _ := post.GetString(CreatedAtKey)
	timestamp, err := GetTimestamp(post, CreatedAtKey, n.Locale)
	if err != nil {
		return nil, missingField(CreatedAtKey, id, err)
	}

	text := selectText(post)
	entities := readEntitySet(post, entitiesKey)
	extended := readEntitySet(post, extendedEntitiesKey)

	var rt *retweet
	if inner, ok := post.GetMap(retweetedKey); ok {
		inner = mergeExtended(inner)
		if innerID, ok := postID(inner); ok && innerID != id {
			innerHandle, ok := inner.GetString(authorKey, "screen_name")
			if !ok || innerHandle == "" {
				// Without its author the repost cannot be credited, the outer
				// post is kept as if it were an original one.
				Logger.Log.Warnf("ignore repost %s of post %s: no author handle", innerID, id)
			} else {
				innerUserID, _ := postID(RawPost(mapOrEmpty(inner[authorKey])))
				rt = &retweet{id: innerID, user: innerHandle, userId: innerUserID}
				text = fmt.Sprintf("RT @%s: %s", innerHandle, selectText(inner))

				// Reposted media and links must show up in the outer record.
				if innerEntities := readEntitySet(inner, entitiesKey); innerEntities != nil {
					entities = entities.appendAll(innerEntities)
				}
				if innerExtended := readEntitySet(inner, extendedEntitiesKey); innerExtended != nil {
					extended = extended.appendAll(innerExtended)
				}
			}
		}
	}

	medias := [][2]string{}
	links := map[string]struct{}{}
	hashtags := map[string]struct{}{}
	mentions := map[string]string{}

	if entities != nil || extended != nil {
		media := entities.objects("media")
		if extended != nil {
			media = extended.objects("media")
		}
		seenMedia := map[string]bool{}
		for _, entity := range append(media, entities.objects("urls")...) {
			text = expandShortURL(text, entity)

			if _, isMedia := entity["media_url"]; isMedia {
				mediaURL, ok := canonicalMediaURL(entity)
				if !ok {
					Logger.Log.Debugf("skip media entity without usable url in post %s", id)
					continue
				}
				key := mediaKey(mediaURL)
				if key == "" || seenMedia[key] {
					continue
				}
				seenMedia[key] = true
				medias = append(medias, [2]string{id + "_" + key, mediaURL})
				continue
			}

			if expanded, ok := entity.GetString("expanded_url"); ok && expanded != "" {
				links[expanded] = struct{}{}
			}
		}

		for _, hashtag := range entities.objects("hashtags") {
			if tag, ok := hashtag.GetString("text"); ok && tag != "" {
				hashtags[strings.ToLower(tag)] = struct{}{}
			}
		}

		// Entity order matters: the last mention of a handle, compared case
		// insensitively, decides its id.
		for _, mention := range entities.objects("user_mentions") {
			name, ok := mention.GetString("screen_name")
			if !ok || name == "" {
				continue
			}
			mentionID, ok := postID(mention)
			if !ok {
				continue
			}
			mentions[strings.ToLower(name)] = mentionID
		}
	}

	mentionNames := make([]string, 0, len(mentions))
	for name := range mentions {
		mentionNames = append(mentionNames, name)
	}
	sort.Strings(mentionNames)
	mentionIDs := make([]string, 0, len(mentionNames))
	for _, name := range mentionNames {
		mentionIDs = append(mentionIDs, mentions[name])
	}

	permalink := fmt.Sprintf(permalinkFormat, handle, id)
	record := Record{
		IdKey:                   id,
		CreatedAtKey:            createdAt,
		TimestampKey:            timestamp,
		TextKey:                 DecodeEntities(text),
		URLKey:                  permalink,
		RetweetIdKey:            nil,
		RetweetUserKey:          nil,
		RetweetUserIdKey:        nil,
		MediasKey:               medias,
		LinksKey:                sortedKeys(links),
		LinksToResolveKey:       len(links) > 0,
		HashtagsKey:             sortedKeys(hashtags),
		MentionsIdsKey:          mentionIDs,
		MentionsNamesKey:        mentionNames,
		CollectedAtTimestampKey: float64(n.now().UnixNano()) / float64(time.Second),
	}
	if rt != nil {
		record[RetweetIdKey] = rt.id
		record[RetweetUserKey] = rt.user
		record[RetweetUserIdKey] = rt.userId
	}
	if tag, ok := post.GetString(SourceTagKey); ok && tag != "" {
		record[CollectedViaPrefix+tag] = true
	}
	if record.Text() == "" {
		Logger.Log.Warnf("no text for post %s", permalink)
	}

	return n.metadata().Extract(post, record), nil
}

func (n *Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

func (n *Normalizer) metadata() *MetadataExtractor {
	if n.Metadata == nil {
		return NewMetadataExtractor(nil, nil, n.Locale)
	}
	return n.Metadata
}

func mapOrEmpty(value interface{}) map[string]interface{} {
	if m, ok := asMap(value); ok {
		return m
	}
	return map[string]interface{}{}
}

// expandShortURL substitutes the expanded form of a link for its short form.
// A short form absent from text leaves text as is.
func expandShortURL(text string, entity RawPost) string {
	short, ok := entity.GetString("url")
	if !ok || short == "" {
		return text
	}
	expanded, ok := entity.GetString("expanded_url")
	if !ok || expanded == "" {
		return text
	}
	return strings.ReplaceAll(text, short, expanded)
}

// canonicalMediaURL picks the highest bitrate variant of a video, or the https
// url of any other media. Variants without bitrate count as 0 and the last of
// equal bitrates wins.
func canonicalMediaURL(entity RawPost) (string, bool) {
	if _, isVideo := entity["video_info"]; isVideo {
		variants, _ := entity.GetList("video_info", "variants")
		best, bestRate := "", 0.0
		for _, item := range variants {
			variant, ok := asMap(item)
			if !ok {
				continue
			}
			u, ok := RawPost(variant).GetString("url")
			if !ok || u == "" {
				continue
			}
			rate := toFloat(variant["bitrate"])
			if best == "" || rate >= bestRate {
				best, bestRate = u, rate
			}
		}
		return best, best != ""
	}
	u, ok := entity.GetString("media_url_https")
	return u, ok && u != ""
}

// mediaKey is the last path segment of a media url, query string excluded.
func mediaKey(mediaURL string) string {
	path := mediaURL
	if parsed, err := url.Parse(mediaURL); err == nil && parsed.Path != "" {
		path = parsed.Path
	}
	return path[strings.LastIndex(path, "/")+1:]
}
