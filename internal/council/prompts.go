package council

import (
	"fmt"
	"strings"
)

// The prompt templates are load-bearing: stage-2 parsing depends on the
// exact "FINAL RANKING:" contract stated in the ranking prompt. Change the
// wording here and the parser fallbacks in ranking.go are all that stands
// between you and empty rankings.

const rankingPromptTemplate = `You are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized):

%s

Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Now provide your evaluation and ranking:`

const chairmanPromptTemplate = `You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: %s

STAGE 1 - Individual Responses:
%s

STAGE 2 - Peer Rankings:
%s

Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`

const titlePromptTemplate = `Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`

// rankingPrompt builds the stage-2 prompt from the anonymized stage-1
// responses. labels[i] corresponds to responses[i].
func rankingPrompt(content string, labels []string, responses []StageResponse) string {
	blocks := make([]string, len(responses))
	for i, r := range responses {
		blocks[i] = labels[i] + ":\n" + r.Response
	}
	return fmt.Sprintf(rankingPromptTemplate, content, strings.Join(blocks, "\n\n"))
}

// chairmanPrompt builds the stage-3 prompt. Unlike stage 2 it is fully
// de-anonymized: the chairman sees real model identities.
func chairmanPrompt(content string, responses []StageResponse, judgments []RankingJudgment) string {
	stage1Blocks := make([]string, len(responses))
	for i, r := range responses {
		stage1Blocks[i] = "Model: " + r.Model + "\nResponse: " + r.Response
	}
	stage2Blocks := make([]string, len(judgments))
	for i, j := range judgments {
		stage2Blocks[i] = "Model: " + j.Model + "\nRanking: " + j.Ranking
	}
	return fmt.Sprintf(chairmanPromptTemplate, content,
		strings.Join(stage1Blocks, "\n\n"), strings.Join(stage2Blocks, "\n\n"))
}

func titlePrompt(content string) string {
	return fmt.Sprintf(titlePromptTemplate, content)
}
