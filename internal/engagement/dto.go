// AngelaMos | 2026
// dto.go

package engagement

type LikeResponse struct {
	PostID     string `json:"postId"`
	LikesCount int    `json:"likesCount"`
	IsLiked    bool   `json:"isLiked"`
}

type SaveResponse struct {
	RecipeID   string `json:"recipeId"`
	SavesCount int    `json:"savesCount"`
	IsSaved    bool   `json:"isSaved"`
}

func toResponse(rel Relation, targetID string, count int, related bool) any {
	if rel.Name == Saves.Name {
		return SaveResponse{RecipeID: targetID, SavesCount: count, IsSaved: related}
	}
	return LikeResponse{PostID: targetID, LikesCount: count, IsLiked: related}
}
