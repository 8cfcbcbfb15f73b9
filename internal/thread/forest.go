// thread собирает плоский, упорядоченный по времени список комментариев в лес веток.
//
// Алгоритм — два прохода по «арене» узлов без рекурсии:
//  1. все узлы выделяются одним слайсом в порядке входа и индексируются по id;
//  2. каждый узел с parent_id подвешивается к родителю; если родителя нет
//     во входных данных (сирота) — узел становится корнем.
//
// Порядок корней и детей совпадает с порядком входа (created_at ASC).
// Мягко удалённые комментарии остаются в дереве: маскирование текста — забота
// слоя представления, а ответы под удалённым комментарием должны быть достижимы.
package thread

import (
	"github.com/google/uuid"

	"github.com/pribylovaa/go-discussions/internal/models"
)

// Node — комментарий и его прямые ответы.
type Node struct {
	Comment models.Comment
	Replies []*Node
}

// Build строит лес за O(n) по времени и памяти.
func Build(comments []models.Comment) []*Node {
	arena := make([]Node, len(comments))
	index := make(map[uuid.UUID]*Node, len(comments))

	for i := range comments {
		arena[i].Comment = comments[i]
		index[comments[i].ID] = &arena[i]
	}

	roots := make([]*Node, 0)
	for i := range arena {
		node := &arena[i]

		if pid := node.Comment.ParentID; pid != nil {
			// Ссылка на себя невозможна по построению, но не даём ей зациклить обход.
			if parent, ok := index[*pid]; ok && parent != node {
				parent.Replies = append(parent.Replies, node)
				continue
			}
		}

		roots = append(roots, node)
	}

	return roots
}

// Walk обходит лес в глубину (pre-order) явным стеком и вызывает fn для каждого узла.
// depth корня = 0. Если fn возвращает false, обход прекращается.
func Walk(roots []*Node, fn func(n *Node, depth int) bool) {
	type frame struct {
		node  *Node
		depth int
	}

	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 0})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(top.node, top.depth) {
			return
		}

		for i := len(top.node.Replies) - 1; i >= 0; i-- {
			stack = append(stack, frame{top.node.Replies[i], top.depth + 1})
		}
	}
}

// Count возвращает общее число узлов в лесу.
func Count(roots []*Node) int {
	n := 0
	Walk(roots, func(*Node, int) bool {
		n++
		return true
	})

	return n
}
