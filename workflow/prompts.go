package workflow

import (
	"strings"
	"text/template"
)

const graderSystem = `You are a grader assessing relevance of a retrieved document to a user question.
If the document contains keyword(s) or semantic meaning related to the question, grade it as relevant.
Give a binary score 'yes' or 'no' to indicate whether the document is relevant to the question.
Respond with a JSON object: {"relevant": "yes" or "no", "rationale": "<short explanation>"}.`

const generatorSystem = `Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say that you don't know, don't try to make up an answer.
Use three sentences maximum and keep the answer as concise as possible.
Always say "thanks for asking!" at the end of the answer.`

const confidenceSystem = `You are AnswerEvaluatorAI, an expert system for evaluating the accuracy and completeness of answers based on provided documents.
Your Objective:
1. Assess whether the given Answer fully and correctly addresses the Question, using evidence from the Document.
2. Determine if the answer is factually accurate and fully supported by the content of the provided document.
3. Check for coverage completeness: does the answer address all key aspects of the question that are present or inferable from the document?
4. Identify any irrelevant, unsupported, or hallucinated claims.
Confidence Scoring:
1. Output a confidence score between 0 and 1, indicating how certain you are that the answer is accurate and complete.
   1.0 = fully correct and complete
   0.0 = inaccurate or entirely unsupported
Missing or Uncertain Information:
1. If the answer is incomplete, specify which facts, concepts, or perspectives are missing.
2. Highlight ambiguities or uncertainties in the document that limit a complete answer.
Enrichment Suggestions:
1. Recommend up to three additional sources, topics, or data types that would help fill the missing gaps or improve retrieval quality.
2. Keep suggestions specific and actionable (e.g., "Add documentation on AWS SES inbound email processing," not "find more info about AWS").
Respond with a JSON object: {"confidence": <0..1>, "suggestions": ["..."], "missing_info": ["..."]}.`

const suggesterSystem = `You are an expert at enriching a knowledge base. You provide suggestions and missing information for a given query.
Provide the following:
Missing or Uncertain Information:
1. Specify which facts, concepts, or perspectives are missing.
2. Highlight ambiguities or uncertainties that limit a complete answer.
Enrichment Suggestions:
1. Recommend up to three additional sources, topics, or data types that would help fill the missing gaps or improve retrieval quality.
2. Keep suggestions specific and actionable (e.g., "Add documentation on AWS SES inbound email processing," not "find more info about AWS").
Respond with a JSON object: {"suggestions": ["..."], "missing_info": ["..."]}.`

const rewriterSystem = `You are a question re-writer that converts an input question to a better version that is optimized for retrieval.
Look at the input and try to reason about the underlying semantic intent / meaning.
Respond with a JSON object: {"query": "<improved question>"}.`

var (
	graderUserTmpl = template.Must(template.New("grader").Parse(
		"Document:\n{{.Context}}\n\nQuestion: {{.Question}}"))

	generatorUserTmpl = template.Must(template.New("generator").Parse(
		"Context:\n{{.Context}}\n\nQuestion: {{.Question}}"))

	confidenceUserTmpl = template.Must(template.New("confidence").Parse(
		"Context: {{.Context}}\n\nQuestion: {{.Question}}\n\nAnswer: {{.Answer}}"))

	suggesterUserTmpl = template.Must(template.New("suggester").Parse(
		"Question: {{.Question}}"))

	rewriterUserTmpl = template.Must(template.New("rewriter").Parse(
		"Here is the initial question:\n\n{{.Question}}\n\nsuggestions:\n{{.Suggestions}}\n\nmissing_info:\n{{.MissingInfo}}\n\nFormulate an improved question."))
)

type promptData struct {
	Question    string
	Context     string
	Answer      string
	Suggestions string
	MissingInfo string
}

func renderPrompt(tmpl *template.Template, data promptData) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
