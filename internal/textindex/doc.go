// Package textindex holds the text analysis shared by the keyword index,
// the hashed embedder and the lexical reranker: tokenisation, stopwords and
// BM25 scoring.
package textindex
