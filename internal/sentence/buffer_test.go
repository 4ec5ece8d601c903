package sentence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushReleasesFirstUnitAndKeepsTail(t *testing.T) {
	b := New(1)

	got := b.Push("你好，世界。继续")
	assert.Equal(t, []string{"你好，"}, got)
	assert.Equal(t, "世界。继续", b.Pending())

	got = b.Push("")
	assert.Equal(t, []string{"世界。"}, got)
	assert.Equal(t, "继续", b.Pending())

	assert.Nil(t, b.Push(""))
	assert.Equal(t, "继续", b.Flush())
	assert.True(t, b.Ended())
	assert.Equal(t, []string{"你好，", "世界。", "继续"}, b.Sentences())
	assert.Equal(t, "你好，世界。继续", b.Response())
}

func TestPushWithoutTerminatorAccumulates(t *testing.T) {
	b := New(1)
	assert.Nil(t, b.Push("hello"))
	assert.Nil(t, b.Push(" world"))
	assert.Equal(t, "hello world", b.Pending())

	assert.Equal(t, []string{"hello world!"}, b.Push("!"))
	assert.Equal(t, "", b.Pending())
}

func TestShortSecondaryFragmentMergesForward(t *testing.T) {
	b := New(1)

	assert.Nil(t, b.Push("备注："))
	assert.Equal(t, "备注：", b.Pending())

	got := b.Push("明天记得带伞。")
	assert.Equal(t, []string{"备注：明天记得带伞。"}, got)
}

func TestLongSecondaryFragmentIsComplete(t *testing.T) {
	b := New(1)

	got := b.Push("这是一个足够长的说明片段：后面")
	require.Len(t, got, 1)
	assert.Equal(t, "这是一个足够长的说明片段：", got[0])
	assert.Equal(t, "后面", b.Pending())
}

func TestSecondaryCountsMergedLength(t *testing.T) {
	b := New(1)

	assert.Nil(t, b.Push("备注：一二三四"))
	got := b.Push("五六：尾")
	assert.Equal(t, []string{"备注：一二三四五六："}, got)
	assert.Equal(t, "尾", b.Pending())
}

func TestThresholdWaitsForEnoughUnits(t *testing.T) {
	b := New(2)

	assert.Nil(t, b.Push("one, two"))
	assert.Equal(t, "one, two", b.Pending())

	got := b.Push("? three")
	assert.Equal(t, []string{"one,", " two?"}, got)
	assert.Equal(t, " three", b.Pending())
}

func TestNewClampsThreshold(t *testing.T) {
	b := New(0)
	assert.Equal(t, []string{"a,"}, b.Push("a,b"))

	b = New(-3)
	assert.Equal(t, []string{"x!"}, b.Push("x!"))
}

func TestFlushEmptyBuffer(t *testing.T) {
	b := New(1)
	assert.Equal(t, "", b.Flush())
	assert.Empty(t, b.Sentences())
	assert.True(t, b.Ended())
}

func TestObserveKeepsFirstIDs(t *testing.T) {
	b := New(1)
	b.Observe("", "")
	b.Observe("c1", "m1")
	b.Observe("c2", "m2")

	assert.Equal(t, "c1", b.ConversationID())
	assert.Equal(t, "m1", b.MessageID())
}

func TestSummarySplitsThinkBlock(t *testing.T) {
	b := New(1)
	b.Push("<think>plan the answer</think>\n")
	b.Push("Sure，here it is")
	b.Observe("conv", "msg")
	b.Flush()

	s := b.Summary()
	assert.Equal(t, "plan the answer", s.Think)
	assert.Equal(t, "Sure，here it is", s.Response)
	assert.Equal(t, "conv", s.ConversationID)
	assert.Equal(t, "msg", s.MessageID)
	assert.True(t, s.IsEnd)
}

func TestSplitThinkWithoutBlock(t *testing.T) {
	think, resp := SplitThink("plain answer")
	assert.Equal(t, "", think)
	assert.Equal(t, "plain answer", resp)

	think, resp = SplitThink("<think>unfinished")
	assert.Equal(t, "unfinished", think)
	assert.Equal(t, "", resp)
}
